package chatsync

import (
	"iter"
	"time"

	"github.com/ahanafabid01/Next-Youth-sub001/internal/model"
)

// EntryKind distinguishes render entries.
type EntryKind string

const (
	EntryDivider EntryKind = "divider"
	EntryMessage EntryKind = "message"
)

// Entry is one row of the rendered timeline.
type Entry struct {
	Kind EntryKind `json:"kind"`
	// Date is the local calendar date (YYYY-MM-DD) of a divider.
	Date       string         `json:"date,omitempty"`
	Message    *model.Message `json:"message,omitempty"`
	ShowSender bool           `json:"showSender,omitempty"`
}

// Group turns a message sequence into render entries. A divider precedes
// the first message of every local calendar date, and the sender is shown
// only when it differs from the previous message's sender.
func Group(seq iter.Seq[model.Message], loc *time.Location) []Entry {
	if loc == nil {
		loc = time.Local
	}

	var (
		entries    []Entry
		lastDate   string
		lastSender string
		first      = true
	)
	for m := range seq {
		date := m.CreatedAt.In(loc).Format(time.DateOnly)
		if first || date != lastDate {
			entries = append(entries, Entry{Kind: EntryDivider, Date: date})
			lastDate = date
		}

		msg := m
		entries = append(entries, Entry{
			Kind:       EntryMessage,
			Message:    &msg,
			ShowSender: first || m.Sender.ID != lastSender,
		})
		lastSender = m.Sender.ID
		first = false
	}
	return entries
}
