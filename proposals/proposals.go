// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package proposals

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/danielhkuo/council/auth"
	"github.com/danielhkuo/council/models"
)

var (
	ErrNotFound      = errors.New("proposal not found")
	ErrForbidden     = errors.New("not allowed to change this proposal")
	ErrTitleRequired = errors.New("proposal title is required")
	ErrInvalidStatus = errors.New("invalid proposal status")
)

// Store is the ordered proposal queue. Not safe for concurrent use.
type Store struct {
	items []*models.Proposal
}

func NewStore(items []*models.Proposal) *Store {
	s := &Store{items: make([]*models.Proposal, 0, len(items))}
	for _, p := range items {
		if p != nil {
			s.items = append(s.items, p)
		}
	}
	return s
}

// All returns the proposals in insertion order. The slice is never nil.
func (s *Store) All() []*models.Proposal {
	return s.items
}

func (s *Store) Get(id string) *models.Proposal {
	for _, p := range s.items {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Create appends a new open proposal authored by author. A missing or
// unparseable vote deadline defaults to now.
func (s *Store) Create(draft models.ProposalDraft, author string, now time.Time) (*models.Proposal, error) {
	title := strings.TrimSpace(draft.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}

	id, err := auth.GenerateID("p")
	if err != nil {
		return nil, fmt.Errorf("failed to create proposal: %w", err)
	}

	deadline, ok := models.ParseTime(draft.VoteDeadline)
	if !ok {
		deadline = now.UTC()
	}

	p := &models.Proposal{
		ID:           id,
		Title:        title,
		Description:  draft.Description,
		VoteDeadline: deadline,
		Author:       author,
		Status:       models.StatusOpen,
		CreatedAt:    now.UnixMilli(),
		Comments:     []models.Comment{},
	}
	if eventDate, ok := models.ParseTime(draft.EventDate); ok {
		p.EventDate = &eventDate
	}

	s.items = append(s.items, p)
	return p, nil
}

// Edit applies patch on behalf of requester. Authors may edit their own
// open proposals; the administrator may edit anything, including status.
// Nothing is changed when an error is returned.
func (s *Store) Edit(id string, patch models.ProposalPatch, requester string, isAdmin bool) error {
	p := s.Get(id)
	if p == nil {
		return ErrNotFound
	}
	if !isAdmin {
		if p.Author != requester {
			return ErrForbidden
		}
		// resolved proposals are frozen for everyone but the administrator
		if p.Status != models.StatusOpen || patch.Status != nil {
			return ErrForbidden
		}
	}

	var title string
	if patch.Title != nil {
		title = strings.TrimSpace(*patch.Title)
		if title == "" {
			return ErrTitleRequired
		}
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, *patch.Status)
	}

	if patch.Title != nil {
		p.Title = title
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.VoteDeadline != nil {
		if t, ok := models.ParseTime(*patch.VoteDeadline); ok {
			p.VoteDeadline = t
		}
	}
	if patch.EventDate != nil {
		if strings.TrimSpace(*patch.EventDate) == "" {
			p.EventDate = nil
		} else if t, ok := models.ParseTime(*patch.EventDate); ok {
			p.EventDate = &t
		}
	}
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	return nil
}

// Delete removes a proposal. Only the administrator may delete.
func (s *Store) Delete(id string, isAdmin bool) error {
	if !isAdmin {
		return ErrForbidden
	}
	idx := slices.IndexFunc(s.items, func(p *models.Proposal) bool { return p.ID == id })
	if idx < 0 {
		return ErrNotFound
	}
	s.items = slices.Delete(s.items, idx, idx+1)
	return nil
}

// PickNext returns the open proposal with the earliest vote deadline.
// Ties go to the proposal created first.
func (s *Store) PickNext() *models.Proposal {
	var next *models.Proposal
	for _, p := range s.items {
		if p.Status != models.StatusOpen {
			continue
		}
		if next == nil || p.VoteDeadline.Before(next.VoteDeadline) {
			next = p
		}
	}
	return next
}
