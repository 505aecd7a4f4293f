package feed

import (
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/campusbites/campus-bites/models"
	"github.com/campusbites/campus-bites/utils"
)

// Manager holds one Feed per recipient that has asked for their
// notifications, seeded lazily from the backlog.
type Manager struct {
	mu    sync.Mutex
	db    *gorm.DB
	feeds map[uint]*Feed

	stopChan chan struct{}
	stopOnce sync.Once
}

func NewManager(db *gorm.DB) *Manager {
	return &Manager{
		db:       db,
		feeds:    make(map[uint]*Feed),
		stopChan: make(chan struct{}),
	}
}

// ForRecipient returns the recipient's feed, seeding it from the stored
// backlog on first access. A feed is only registered once its seed
// succeeded, so a failed backlog fetch leaves nothing half-initialized
// behind.
func (m *Manager) ForRecipient(recipientID uint) (*Feed, error) {
	if f := m.activeFeed(recipientID); f != nil {
		return f, nil
	}

	backlog, err := m.fetchBacklog(recipientID)
	if err != nil {
		return nil, err
	}

	f := New()
	f.Seed(backlog)

	m.mu.Lock()
	defer m.mu.Unlock()
	// A concurrent caller may have registered first; their feed wins.
	if existing, ok := m.feeds[recipientID]; ok {
		return existing, nil
	}
	m.feeds[recipientID] = f
	return f, nil
}

// ApplyInsert routes a realtime insert event to the recipient's feed, if one
// is active.
func (m *Manager) ApplyInsert(n models.Notification) {
	if f := m.activeFeed(n.RecipientID); f != nil {
		f.ApplyInsert(n)
	}
}

// ApplyUpdate routes a realtime update event to the recipient's feed, if one
// is active.
func (m *Manager) ApplyUpdate(n models.Notification) {
	if f := m.activeFeed(n.RecipientID); f != nil {
		f.ApplyUpdate(n)
	}
}

// Refresh refetches a recipient's backlog and reconciles it into the feed.
// This is the fallback path for when realtime delivery is not trusted.
func (m *Manager) Refresh(recipientID uint) error {
	f := m.activeFeed(recipientID)
	if f == nil {
		_, err := m.ForRecipient(recipientID)
		return err
	}

	sinceRev := f.Revision()
	backlog, err := m.fetchBacklog(recipientID)
	if err != nil {
		return err
	}
	f.Refresh(sinceRev, backlog)
	return nil
}

// StartPolling refreshes every active feed on a fixed interval.
func (m *Manager) StartPolling(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				for _, id := range m.activeRecipients() {
					if err := m.Refresh(id); err != nil {
						utils.ErrorLogger.Printf("Feed refresh failed for recipient %d: %v", id, err)
					}
				}
			case <-m.stopChan:
				return
			}
		}
	}()
}

// StopPolling terminates the background refresh loop.
func (m *Manager) StopPolling() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

func (m *Manager) activeFeed(recipientID uint) *Feed {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.feeds[recipientID]
}

func (m *Manager) activeRecipients() []uint {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]uint, 0, len(m.feeds))
	for id := range m.feeds {
		ids = append(ids, id)
	}
	return ids
}

func (m *Manager) fetchBacklog(recipientID uint) ([]models.Notification, error) {
	var backlog []models.Notification
	err := m.db.
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC").
		Find(&backlog).Error
	return backlog, err
}
