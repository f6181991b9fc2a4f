package enums

import "slices"

// NotificationType is stored as text in the notification_type column.
type NotificationType string

const (
	NotificationTypeSystemAnnouncement NotificationType = "system_announcement"
	NotificationTypeAssignmentOffered  NotificationType = "assignment_offered"
	NotificationTypeAssignmentUpdate   NotificationType = "assignment_update"
	NotificationTypeAssignmentRated    NotificationType = "assignment_rated"
	NotificationTypeBilling            NotificationType = "billing"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeSystemAnnouncement,
	NotificationTypeAssignmentOffered,
	NotificationTypeAssignmentUpdate,
	NotificationTypeAssignmentRated,
	NotificationTypeBilling,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	return slices.Contains(validNotificationTypes, n)
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	return parseEnum(validNotificationTypes, value, "notification type")
}
