// Package store keeps consultation records, room lookups and chat history
// in Redis.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mossy-p/consult-signaling/internal/models"
	"github.com/redis/go-redis/v9"
)

var (
	ErrNotFound          = errors.New("consultation not found")
	ErrRoomNotFound      = models.ErrRoomNotFound
	ErrInvalidTransition = errors.New("invalid status transition")
)

const defaultDuration = 30

func consultationKey(id string) string { return "consultation:" + id }
func messagesKey(id string) string     { return "consultation:" + id + ":messages" }
func roomKey(roomID string) string     { return "room:" + roomID }
func userKey(userID string) string     { return "user:" + userID + ":consultations" }

// Consultations is the consultation record store.
type Consultations struct {
	rdb *redis.Client
	now func() time.Time
}

func NewConsultations(rdb *redis.Client) *Consultations {
	return &Consultations{rdb: rdb, now: time.Now}
}

// Create books a consultation with a fresh room id.
func (s *Consultations) Create(ctx context.Context, patientID string, req models.CreateConsultationRequest) (*models.Consultation, error) {
	if req.Duration == 0 {
		req.Duration = defaultDuration
	}

	c := &models.Consultation{
		ID:            uuid.NewString(),
		RoomID:        uuid.NewString(),
		PatientID:     patientID,
		DoctorID:      req.DoctorID,
		ScheduledDate: req.ScheduledDate,
		Duration:      req.Duration,
		Status:        models.StatusScheduled,
		Reason:        req.Reason,
		CreatedAt:     s.now().UTC(),
	}

	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal consultation: %w", err)
	}

	score := float64(c.ScheduledDate.Unix())
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, consultationKey(c.ID), data, 0)
		pipe.Set(ctx, roomKey(c.RoomID), c.ID, 0)
		pipe.ZAdd(ctx, userKey(c.PatientID), redis.Z{Score: score, Member: c.ID})
		pipe.ZAdd(ctx, userKey(c.DoctorID), redis.Z{Score: score, Member: c.ID})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store consultation: %w", err)
	}
	return c, nil
}

// Get returns a consultation by id.
func (s *Consultations) Get(ctx context.Context, id string) (*models.Consultation, error) {
	data, err := s.rdb.Get(ctx, consultationKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get consultation: %w", err)
	}

	var c models.Consultation
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse consultation %s: %w", id, err)
	}
	return &c, nil
}

// ListForUser returns the consultations userID is a party of, most
// recently scheduled first.
func (s *Consultations) ListForUser(ctx context.Context, userID string) ([]models.Consultation, error) {
	ids, err := s.rdb.ZRevRange(ctx, userKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list consultations: %w", err)
	}

	out := make([]models.Consultation, 0, len(ids))
	for _, id := range ids {
		c, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, nil
}

// UpdateStatus moves a scheduled consultation to completed or cancelled.
func (s *Consultations) UpdateStatus(ctx context.Context, id string, status models.ConsultationStatus) (*models.Consultation, error) {
	if !status.Terminal() {
		return nil, fmt.Errorf("%w: to %q", ErrInvalidTransition, status)
	}

	var updated *models.Consultation
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, consultationKey(id)).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return err
		}
		var c models.Consultation
		if err := json.Unmarshal(data, &c); err != nil {
			return fmt.Errorf("parse consultation %s: %w", id, err)
		}
		if c.Status != models.StatusScheduled {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, c.Status, status)
		}

		c.Status = status
		if status == models.StatusCompleted {
			now := s.now().UTC()
			c.CompletedAt = &now
		}
		out, err := json.Marshal(&c)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, consultationKey(id), out, 0)
			return nil
		})
		if err == nil {
			updated = &c
		}
		return err
	}

	if err := s.rdb.Watch(ctx, txf, consultationKey(id)); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidTransition) {
			return nil, err
		}
		return nil, fmt.Errorf("update status: %w", err)
	}
	return updated, nil
}

// RoomParties resolves roomID to its two authorized participants. Rooms of
// completed or cancelled consultations are reported as not found.
func (s *Consultations) RoomParties(ctx context.Context, roomID string) (models.RoomParties, error) {
	id, err := s.rdb.Get(ctx, roomKey(roomID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.RoomParties{}, ErrRoomNotFound
		}
		return models.RoomParties{}, fmt.Errorf("lookup room: %w", err)
	}

	c, err := s.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return models.RoomParties{}, ErrRoomNotFound
		}
		return models.RoomParties{}, err
	}
	if c.Status.Terminal() {
		return models.RoomParties{}, ErrRoomNotFound
	}
	return c.Parties(), nil
}

// AppendMessage durably appends a chat message to the consultation history.
func (s *Consultations) AppendMessage(ctx context.Context, c *models.Consultation, sender, content string) (*models.ChatMessage, error) {
	msg := &models.ChatMessage{
		ID:        uuid.NewString(),
		RoomID:    c.RoomID,
		Sender:    sender,
		Content:   content,
		Timestamp: s.now().UTC(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	if err := s.rdb.RPush(ctx, messagesKey(c.ID), data).Err(); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	return msg, nil
}

// Messages returns the consultation history in chronological order.
func (s *Consultations) Messages(ctx context.Context, consultationID string) ([]models.ChatMessage, error) {
	raw, err := s.rdb.LRange(ctx, messagesKey(consultationID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	out := make([]models.ChatMessage, 0, len(raw))
	for _, item := range raw {
		var m models.ChatMessage
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("parse message: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}
