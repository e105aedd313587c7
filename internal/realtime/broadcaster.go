package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/logger"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/models"
)

const (
	EventProjectStatus    = "project_status_update"
	defaultProjectChannel = "escrow:project_events"
)

type ProjectEvent struct {
	Type            string               `json:"type"`
	ProjectID       uuid.UUID            `json:"project_id"`
	Title           string               `json:"title"`
	Status          models.ProjectStatus `json:"status"`
	EmployerID      uuid.UUID            `json:"employer_id"`
	FreelancerID    *uuid.UUID           `json:"freelancer_id,omitempty"`
	ContractAddress *string              `json:"contract_address,omitempty"`
	At              time.Time            `json:"at"`
}

// Broadcaster pushes project status changes to the employer and freelancer.
// With a redis client, events go through pub/sub so every instance's hub sees them.
type Broadcaster struct {
	Client  *redis.Client
	Channel string
	Hub     *Hub
	Log     logger.Logger
}

func NewBroadcaster(client *redis.Client, hub *Hub, log logger.Logger) *Broadcaster {
	if log == nil {
		log = logger.NewNoOp()
	}
	return &Broadcaster{Client: client, Channel: defaultProjectChannel, Hub: hub, Log: log}
}

func (b *Broadcaster) ProjectChanged(ctx context.Context, p *models.Project) {
	ev := ProjectEvent{
		Type:            EventProjectStatus,
		ProjectID:       p.ID,
		Title:           p.Title,
		Status:          p.Status,
		EmployerID:      p.EmployerID,
		FreelancerID:    p.FreelancerID,
		ContractAddress: p.ContractAddress,
		At:              time.Now().UTC(),
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		b.Log.WithError(err).Warn("marshal project event", nil)
		return
	}
	if b.Client == nil {
		b.deliver(payload)
		return
	}
	if err := b.Client.Publish(ctx, b.Channel, payload).Err(); err != nil {
		b.Log.WithError(err).Warn("publish project event failed, delivering locally", map[string]interface{}{
			"projectId": p.ID.String(),
		})
		b.deliver(payload)
	}
}

// Subscribe joins the event channel and returns once redis has confirmed it.
func (b *Broadcaster) Subscribe(ctx context.Context) (*redis.PubSub, error) {
	sub := b.Client.Subscribe(ctx, b.Channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}
	return sub, nil
}

// Serve delivers events from sub to local connections until ctx is done.
func (b *Broadcaster) Serve(ctx context.Context, sub *redis.PubSub) {
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.deliver([]byte(msg.Payload))
		}
	}
}

func (b *Broadcaster) Listen(ctx context.Context) error {
	sub, err := b.Subscribe(ctx)
	if err != nil {
		return err
	}
	b.Serve(ctx, sub)
	return nil
}

func (b *Broadcaster) deliver(payload []byte) {
	var ev ProjectEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		b.Log.WithError(err).Warn("drop malformed project event", nil)
		return
	}
	b.Hub.sendRaw(ev.EmployerID, payload)
	if ev.FreelancerID != nil && *ev.FreelancerID != ev.EmployerID {
		b.Hub.sendRaw(*ev.FreelancerID, payload)
	}
}
