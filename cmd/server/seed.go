package main

import "taxi/internal/domain"

// demoUsers is the data set for STORAGE_SEED_DEMO with the memory backend.
func demoUsers() []*domain.User {
	return []*domain.User{
		{ID: 1, Username: "admin", Role: domain.RoleAdmin, Name: "Admin"},
		{ID: 2, Username: "sita", Role: domain.RoleCustomer, Name: "Sita Sharma", Address: "Baneshwor, Kathmandu", Phone: "9800000002"},
		{ID: 3, Username: "ram", Role: domain.RoleCustomer, Name: "Ram Thapa", Address: "Lazimpat, Kathmandu", Phone: "9800000003"},
		{ID: 10, Username: "hari", Role: domain.RoleDriver, Name: "Hari Gurung", Address: "Thamel, Kathmandu", Phone: "9800000010"},
		{ID: 11, Username: "gita", Role: domain.RoleDriver, Name: "Gita Rai", Address: "Jhamsikhel, Lalitpur", Phone: "9800000011"},
		{ID: 12, Username: "bikash", Role: domain.RoleDriver, Name: "Bikash Karki", Address: "Boudha, Kathmandu", Phone: "9800000012"},
		{ID: 13, Username: "maya", Role: domain.RoleDriver, Name: "Maya Shrestha", Address: "Kalanki, Kathmandu", Phone: "9800000013"},
		{ID: 14, Username: "suman", Role: domain.RoleDriver, Name: "Suman Magar", Address: "Bhaktapur Durbar Square", Phone: "9800000014"},
	}
}
