package directory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pielancer314/PizzaForPi/model"
)

type MemoryUsers struct {
	mu     sync.RWMutex
	users  map[uint]*model.User
	nextID uint
}

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{users: make(map[uint]*model.User)}
}

func (d *MemoryUsers) Get(_ context.Context, id uint) (*model.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, id)
	}
	return cloneUser(u), nil
}

func (d *MemoryUsers) FindOrCreateByPi(_ context.Context, uid, username, email string) (*model.User, error) {
	now := time.Now()
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if u.PiUserID == uid {
			u.LastLogin = &now
			return cloneUser(u), nil
		}
	}
	u := newPiUser(uid, username, email, now)
	d.insert(u)
	return cloneUser(u), nil
}

func (d *MemoryUsers) UpdateLocation(_ context.Context, id uint, loc model.Coordinates, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return fmt.Errorf("%w: user %d", ErrNotFound, id)
	}
	u.CurrentLocation = &loc
	u.LocationUpdatedAt = &at
	return nil
}

// Save inserts u when it has no id yet and assigns one; otherwise it
// replaces the stored record.
func (d *MemoryUsers) Save(_ context.Context, u *model.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	stored := cloneUser(u)
	if stored.ID == 0 {
		d.insert(stored)
		u.ID = stored.ID
		return nil
	}
	if stored.ID > d.nextID {
		d.nextID = stored.ID
	}
	d.users[stored.ID] = stored
	return nil
}

func (d *MemoryUsers) insert(u *model.User) {
	d.nextID++
	u.ID = d.nextID
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	d.users[u.ID] = u
}

func cloneUser(u *model.User) *model.User {
	out := *u
	if u.RestaurantID != nil {
		id := *u.RestaurantID
		out.RestaurantID = &id
	}
	if u.CurrentLocation != nil {
		loc := *u.CurrentLocation
		out.CurrentLocation = &loc
	}
	if u.LocationUpdatedAt != nil {
		at := *u.LocationUpdatedAt
		out.LocationUpdatedAt = &at
	}
	if u.LastLogin != nil {
		at := *u.LastLogin
		out.LastLogin = &at
	}
	return &out
}

type MemoryRestaurants struct {
	mu          sync.RWMutex
	restaurants map[uint]*model.Restaurant
	nextID      uint
	nextItemID  uint
}

func NewMemoryRestaurants() *MemoryRestaurants {
	return &MemoryRestaurants{restaurants: make(map[uint]*model.Restaurant)}
}

func (d *MemoryRestaurants) Get(_ context.Context, id uint) (*model.Restaurant, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.restaurants[id]
	if !ok {
		return nil, fmt.Errorf("%w: restaurant %d", ErrNotFound, id)
	}
	return cloneRestaurant(r), nil
}

func (d *MemoryRestaurants) FindBySlug(_ context.Context, slug string) (*model.Restaurant, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, r := range d.restaurants {
		if r.Slug == slug {
			return cloneRestaurant(r), nil
		}
	}
	return nil, fmt.Errorf("%w: restaurant %q", ErrNotFound, slug)
}

// Save assigns ids to the restaurant and any new menu items.
func (d *MemoryRestaurants) Save(_ context.Context, r *model.Restaurant) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r.ID == 0 {
		d.nextID++
		r.ID = d.nextID
	} else if r.ID > d.nextID {
		d.nextID = r.ID
	}
	for i := range r.Menu {
		r.Menu[i].RestaurantID = r.ID
		if r.Menu[i].ID == 0 {
			d.nextItemID++
			r.Menu[i].ID = d.nextItemID
		} else if r.Menu[i].ID > d.nextItemID {
			d.nextItemID = r.Menu[i].ID
		}
	}
	d.restaurants[r.ID] = cloneRestaurant(r)
	return nil
}

func cloneRestaurant(r *model.Restaurant) *model.Restaurant {
	out := *r
	if r.OwnerID != nil {
		id := *r.OwnerID
		out.OwnerID = &id
	}
	out.Menu = append([]model.MenuItem(nil), r.Menu...)
	return &out
}
