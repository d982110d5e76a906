// Package realtime pushes order events to connected clients. Clients
// subscribe to typed topics; the hub fans each published event out to
// the current members of its topic without ever waiting on them.
package realtime

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidTopic = errors.New("invalid topic")

type Kind string

const (
	KindUser       Kind = "user"
	KindOrder      Kind = "order"
	KindRestaurant Kind = "restaurant"
)

// Topic names a room. Its string form is "kind:id".
type Topic struct {
	Kind Kind
	ID   string
}

func UserTopic(id uint) Topic {
	return Topic{Kind: KindUser, ID: strconv.FormatUint(uint64(id), 10)}
}

func OrderTopic(id string) Topic {
	return Topic{Kind: KindOrder, ID: id}
}

func RestaurantTopic(id uint) Topic {
	return Topic{Kind: KindRestaurant, ID: strconv.FormatUint(uint64(id), 10)}
}

func (t Topic) String() string {
	return string(t.Kind) + ":" + t.ID
}

// NumericID parses the id of user and restaurant topics.
func (t Topic) NumericID() (uint, error) {
	n, err := strconv.ParseUint(t.ID, 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("%w: %s is not a numeric id", ErrInvalidTopic, t)
	}
	return uint(n), nil
}

func (t Topic) Validate() error {
	switch t.Kind {
	case KindUser, KindRestaurant:
		_, err := t.NumericID()
		return err
	case KindOrder:
		if strings.TrimSpace(t.ID) == "" {
			return fmt.Errorf("%w: empty order id", ErrInvalidTopic)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidTopic, t.Kind)
	}
}

func ParseTopic(s string) (Topic, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok {
		return Topic{}, fmt.Errorf("%w: %q", ErrInvalidTopic, s)
	}
	t := Topic{Kind: Kind(kind), ID: id}
	if err := t.Validate(); err != nil {
		return Topic{}, err
	}
	return t, nil
}
