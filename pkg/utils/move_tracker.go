package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// MoveEvent is one committed local move.
type MoveEvent struct {
	MoveNumber int     `json:"move"`
	Pass       int     `json:"pass"`
	Algorithm  string  `json:"algorithm"`
	Node       int64   `json:"node"`
	FromComm   int     `json:"from_comm"`
	ToComm     int     `json:"to_comm"`
	Gain       float64 `json:"gain"`
	Modularity float64 `json:"modularity"`
	Timestamp  int64   `json:"timestamp"`
}

// MoveTracker writes move events as JSON lines. A nil tracker discards everything.
type MoveTracker struct {
	out       io.Writer
	closer    io.Closer
	encoder   *json.Encoder
	algorithm string
	err       error
}

// NewMoveTracker creates filename and tracks moves into it.
func NewMoveTracker(filename, algorithm string) (*MoveTracker, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create move tracking file: %w", err)
	}

	mt := NewMoveTrackerWriter(file, algorithm)
	mt.closer = file
	return mt, nil
}

// NewMoveTrackerWriter tracks moves into w.
func NewMoveTrackerWriter(w io.Writer, algorithm string) *MoveTracker {
	return &MoveTracker{
		out:       w,
		encoder:   json.NewEncoder(w),
		algorithm: algorithm,
	}
}

// LogMove records a move. The first write error is kept and later moves are dropped.
func (mt *MoveTracker) LogMove(moveNum, pass int, node int64, fromComm, toComm int, gain, modularity float64) {
	if mt == nil || mt.err != nil {
		return
	}

	event := MoveEvent{
		MoveNumber: moveNum,
		Pass:       pass,
		Algorithm:  mt.algorithm,
		Node:       node,
		FromComm:   fromComm,
		ToComm:     toComm,
		Gain:       gain,
		Modularity: modularity,
		Timestamp:  time.Now().Unix(),
	}

	mt.err = mt.encoder.Encode(event)
}

// Err returns the first write error, if any.
func (mt *MoveTracker) Err() error {
	if mt == nil {
		return nil
	}
	return mt.err
}

// Close closes the underlying file when the tracker owns one.
func (mt *MoveTracker) Close() error {
	if mt == nil || mt.closer == nil {
		return nil
	}
	return mt.closer.Close()
}
