package event

import (
	"fmt"

	"github.com/zjrosen/ledgerkit/internal/model"
	"github.com/zjrosen/ledgerkit/internal/pubsub"
)

// Change is a detached copy of one notification, safe to hand to another
// goroutine.
type Change struct {
	Object   string
	Property string
	Old      string
	New      string
	From     string
	To       string
}

// Bridge republishes top-level notifications on a broker. Created and
// Destroyed are folded into Inserted and Removed.
type Bridge struct {
	broker *pubsub.Broker[Change]
}

// NewBridge creates a bridge publishing to broker.
func NewBridge(broker *pubsub.Broker[Change]) *Bridge {
	return &Bridge{broker: broker}
}

func (b *Bridge) ObjectInserted(obj model.Object) {
	b.broker.Publish(pubsub.CreatedEvent, Change{Object: model.Describe(obj)})
}

func (b *Bridge) ObjectCreated(model.Object) {}

func (b *Bridge) ObjectRemoved(obj model.Object) {
	b.broker.Publish(pubsub.DeletedEvent, Change{Object: model.Describe(obj)})
}

func (b *Bridge) ObjectDestroyed(model.Object) {}

func (b *Bridge) ObjectChanged(obj model.Object, p *model.ScalarProperty, oldValue, newValue any) {
	b.broker.Publish(pubsub.UpdatedEvent, Change{
		Object:   model.Describe(obj),
		Property: p.Name(),
		Old:      formatValue(oldValue),
		New:      formatValue(newValue),
	})
}

func (b *Bridge) ObjectMoved(obj model.Object, from, to model.ListKey) {
	b.broker.Publish(pubsub.MovedEvent, Change{
		Object: model.Describe(obj),
		From:   from.String(),
		To:     to.String(),
	})
}

func (b *Bridge) PerformRefresh() {
	b.broker.Publish(pubsub.RefreshEvent, Change{})
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "<nil>"
	case model.Key:
		if obj := x.Resolve(); obj != nil {
			return model.Describe(obj)
		}
		return fmt.Sprintf("%v", x)
	default:
		return fmt.Sprintf("%v", x)
	}
}
