package models

import (
	"errors"
	"time"
)

// ErrRoomNotFound is returned when a room id does not resolve to a joinable
// consultation.
var ErrRoomNotFound = errors.New("room not found")

// ConsultationStatus is the booking lifecycle of a consultation.
type ConsultationStatus string

const (
	StatusScheduled ConsultationStatus = "scheduled"
	StatusCompleted ConsultationStatus = "completed"
	StatusCancelled ConsultationStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s ConsultationStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether the consultation room is no longer joinable.
func (s ConsultationStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Consultation is a booked session between a patient and a doctor.
type Consultation struct {
	ID            string             `json:"id"`
	RoomID        string             `json:"roomId"` // Generated once at booking time
	PatientID     string             `json:"patientId"`
	DoctorID      string             `json:"doctorId"`
	ScheduledDate time.Time          `json:"scheduledDate"`
	Duration      int                `json:"duration"` // in minutes
	Status        ConsultationStatus `json:"status"`
	Reason        string             `json:"reason"`
	Notes         string             `json:"notes,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
	CompletedAt   *time.Time         `json:"completedAt,omitempty"`
}

// HasParty reports whether participantID is the patient or doctor.
func (c *Consultation) HasParty(participantID string) bool {
	return participantID != "" && (c.PatientID == participantID || c.DoctorID == participantID)
}

// Parties returns the two authorized occupants of the consultation room.
func (c *Consultation) Parties() RoomParties {
	return RoomParties{RoomID: c.RoomID, PatientID: c.PatientID, DoctorID: c.DoctorID}
}

// RoomParties are the two participants authorized to occupy a room.
type RoomParties struct {
	RoomID    string
	PatientID string
	DoctorID  string
}

// Includes reports whether participantID is one of the two parties.
func (p RoomParties) Includes(participantID string) bool {
	return participantID != "" && (p.PatientID == participantID || p.DoctorID == participantID)
}

// ChatMessage is one entry of a consultation's persisted history.
type ChatMessage struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// CreateConsultationRequest is the request body for booking a consultation
type CreateConsultationRequest struct {
	DoctorID      string    `json:"doctorId" binding:"required"`
	ScheduledDate time.Time `json:"scheduledDate" binding:"required"`
	Duration      int       `json:"duration" binding:"omitempty,min=5,max=240"`
	Reason        string    `json:"reason" binding:"required"`
}

// UpdateStatusRequest is the request body for changing a consultation status
type UpdateStatusRequest struct {
	Status ConsultationStatus `json:"status" binding:"required"`
}

// AddMessageRequest is the request body for persisting a chat message
type AddMessageRequest struct {
	Content string `json:"content" binding:"required"`
}
