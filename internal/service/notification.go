package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"taxi/internal/domain"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationBookingCreated   NotificationType = "BOOKING_CREATED"
	NotificationDriverAssigned   NotificationType = "DRIVER_ASSIGNED"
	NotificationBookingCancelled NotificationType = "BOOKING_CANCELLED"
	NotificationBookingCompleted NotificationType = "BOOKING_COMPLETED"
)

// Notification represents a notification to be sent.
type Notification struct {
	Type        NotificationType
	RecipientID int64 // customer or driver user ID
	Title       string
	Message     string
	Data        map[string]interface{}
	CreatedAt   time.Time
}

// Notifier delivers booking notifications.
type Notifier interface {
	NotifyBookingCreated(ctx context.Context, booking *domain.Booking)
	NotifyDriverAssigned(ctx context.Context, booking *domain.Booking)
	NotifyBookingCancelled(ctx context.Context, booking *domain.Booking)
	NotifyBookingCompleted(ctx context.Context, booking *domain.Booking)
}

var _ Notifier = (*NotificationService)(nil)

// NotificationService delivers notifications by writing them to the log.
type NotificationService struct {
	log logrus.FieldLogger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(log logrus.FieldLogger) *NotificationService {
	return &NotificationService{log: log.WithField("component", "notifications")}
}

// NotifyBookingCreated confirms a new booking to the customer.
func (s *NotificationService) NotifyBookingCreated(ctx context.Context, booking *domain.Booking) {
	s.send(ctx, Notification{
		Type:        NotificationBookingCreated,
		RecipientID: booking.CustomerID,
		Title:       "Booking Created",
		Message:     fmt.Sprintf("Booking created with ID %d.", booking.ID),
		Data:        bookingData(booking),
		CreatedAt:   time.Now(),
	})
}

// NotifyDriverAssigned tells both the customer and the driver about an assignment.
func (s *NotificationService) NotifyDriverAssigned(ctx context.Context, booking *domain.Booking) {
	if booking.DriverID == nil {
		return
	}
	s.send(ctx, Notification{
		Type:        NotificationDriverAssigned,
		RecipientID: booking.CustomerID,
		Title:       "Driver Assigned",
		Message:     fmt.Sprintf("Driver %d has been assigned to your ride on %s at %s", *booking.DriverID, booking.Date, booking.Time),
		Data:        bookingData(booking),
		CreatedAt:   time.Now(),
	})
	s.send(ctx, Notification{
		Type:        NotificationDriverAssigned,
		RecipientID: *booking.DriverID,
		Title:       "New Assignment",
		Message:     fmt.Sprintf("Pickup at %s on %s at %s", booking.Pickup, booking.Date, booking.Time),
		Data:        bookingData(booking),
		CreatedAt:   time.Now(),
	})
}

// NotifyBookingCancelled tells the assigned driver, if any, that the ride is off.
func (s *NotificationService) NotifyBookingCancelled(ctx context.Context, booking *domain.Booking) {
	if booking.DriverID == nil {
		return
	}
	s.send(ctx, Notification{
		Type:        NotificationBookingCancelled,
		RecipientID: *booking.DriverID,
		Title:       "Booking Cancelled",
		Message:     fmt.Sprintf("Booking %d has been cancelled", booking.ID),
		Data:        bookingData(booking),
		CreatedAt:   time.Now(),
	})
}

// NotifyBookingCompleted thanks the customer once the ride is done.
func (s *NotificationService) NotifyBookingCompleted(ctx context.Context, booking *domain.Booking) {
	s.send(ctx, Notification{
		Type:        NotificationBookingCompleted,
		RecipientID: booking.CustomerID,
		Title:       "Ride Completed",
		Message:     fmt.Sprintf("Your ride from %s to %s is complete", booking.Pickup, booking.Dropoff),
		Data:        bookingData(booking),
		CreatedAt:   time.Now(),
	})
}

func bookingData(b *domain.Booking) map[string]interface{} {
	data := map[string]interface{}{
		"booking_id": b.ID,
		"status":     b.Status,
	}
	if b.DriverID != nil {
		data["driver_id"] = *b.DriverID
	}
	return data
}

// send delivers a notification. Delivery is log-only.
func (s *NotificationService) send(ctx context.Context, n Notification) {
	s.log.WithFields(logrus.Fields{
		"type":      n.Type,
		"recipient": n.RecipientID,
		"title":     n.Title,
	}).WithFields(n.Data).Info(n.Message)
}
