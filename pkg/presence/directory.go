package presence

import (
	"sync"
	"time"

	"github.com/anatoly-dev/go-chatpay/pkg/models"
)

// ChangeFunc is invoked synchronously, while the directory lock is
// held, for every presence transition. Snapshot order therefore always
// matches the order the transitions committed in.
type ChangeFunc func(user *models.User, snapshot []*models.User)

// Directory tracks who is online, independent of which physical
// connection currently carries the user.
type Directory struct {
	mu       sync.RWMutex
	users    map[string]*models.User
	order    []string
	onChange ChangeFunc
}

func NewDirectory() *Directory {
	return &Directory{
		users: make(map[string]*models.User),
	}
}

func (d *Directory) SetOnChange(fn ChangeFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onChange = fn
}

// SetOnline creates the user on first sight and marks it online. The
// display name is refreshed on every call so a re-auth can rename.
func (d *Directory) SetOnline(id, username string) *models.User {
	d.mu.Lock()
	defer d.mu.Unlock()

	user, ok := d.users[id]
	if !ok {
		user = &models.User{ID: id}
		d.users[id] = user
		d.order = append(d.order, id)
	}
	user.Username = username
	user.Online = true
	user.LastSeen = time.Now()

	d.notifyLocked(user)
	return cloneUser(user)
}

// SetOffline is idempotent: marking an unknown or already offline user
// offline changes nothing and fires no notification.
func (d *Directory) SetOffline(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	user, ok := d.users[id]
	if !ok || !user.Online {
		return
	}
	user.Online = false
	user.LastSeen = time.Now()

	d.notifyLocked(user)
}

func (d *Directory) notifyLocked(user *models.User) {
	if d.onChange == nil {
		return
	}
	d.onChange(cloneUser(user), d.snapshotLocked())
}

// Snapshot returns all users in first-seen order.
func (d *Directory) Snapshot() []*models.User {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snapshotLocked()
}

func (d *Directory) snapshotLocked() []*models.User {
	users := make([]*models.User, 0, len(d.order))
	for _, id := range d.order {
		users = append(users, cloneUser(d.users[id]))
	}
	return users
}

// Online returns the online subset of the directory in first-seen order.
func (d *Directory) Online() []*models.User {
	d.mu.RLock()
	defer d.mu.RUnlock()

	users := make([]*models.User, 0, len(d.order))
	for _, id := range d.order {
		if u := d.users[id]; u.Online {
			users = append(users, cloneUser(u))
		}
	}
	return users
}

func (d *Directory) Get(id string) (*models.User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	user, ok := d.users[id]
	if !ok {
		return nil, false
	}
	return cloneUser(user), true
}

func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.users)
}

func cloneUser(u *models.User) *models.User {
	c := *u
	return &c
}
