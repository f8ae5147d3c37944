package usecase

import "github.com/rocketscienceinc/gridarbiter/internal/entity"

type NotificationType string

const (
	NotificationJoined   NotificationType = "joined"
	NotificationUpdate   NotificationType = "update"
	NotificationInvalid  NotificationType = "invalid"
	NotificationGameOver NotificationType = "game-over"
)

// Notification is what a session pushes to a participant. Fields not matching Type are zero.
type Notification struct {
	Type      NotificationType
	SessionID string
	Team      entity.Team
	Snapshot  entity.Snapshot
	Winner    entity.Team
	Reason    string
}

// Conn is a participant connection as seen by the game layer.
// Send must not block: sessions call it while holding their lock.
type Conn interface {
	ID() string
	Send(notification Notification) error
}

func invalidNotification() Notification {
	return Notification{Type: NotificationInvalid}
}
