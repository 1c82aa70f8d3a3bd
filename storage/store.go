// storage/store.go
// Copyright(c) 2025-2026 starlink-dashboard contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package storage

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/bcl1713/starlink-dashboard-sub010/route"
	"github.com/bcl1713/starlink-dashboard-sub010/timeline"
	"github.com/bcl1713/starlink-dashboard-sub010/transport"
	"github.com/bcl1713/starlink-dashboard-sub010/util"
)

var (
	ErrEmptyID          = errors.New("Empty id")
	ErrLegNotFound      = errors.New("Unknown mission leg")
	ErrRouteNotFound    = errors.New("Unknown route")
	ErrTimelineNotFound = errors.New("No timeline saved for the mission leg")
)

// Store persists mission data: routes by route id, leg configs and
// timeline snapshots by leg id. Timelines reach a Store only on explicit
// save; preview computations never touch one.
type Store interface {
	LoadRoute(id string) (*route.Route, error)
	SaveRoute(r *route.Route) error
	DeleteRoute(id string) error

	LoadLegConfig(legID string) (*transport.LegConfig, error)
	SaveLegConfig(cfg *transport.LegConfig) error

	LoadTimeline(legID string) (*timeline.Snapshot, error)
	SaveTimeline(snap *timeline.Snapshot) error
}

///////////////////////////////////////////////////////////////////////////
// MemStore

// MemStore keeps encoded blobs in memory. It serves tests and ephemeral
// runs; because it stores the same encoding FileStore writes to disk,
// both behave identically with respect to copies and determinism.
type MemStore struct {
	mu        sync.Mutex
	routes    map[string][]byte
	legs      map[string][]byte
	timelines map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{
		routes:    make(map[string][]byte),
		legs:      make(map[string][]byte),
		timelines: make(map[string][]byte),
	}
}

var _ Store = (*MemStore)(nil)

func (s *MemStore) put(m map[string][]byte, id string, obj any) error {
	if id == "" {
		return ErrEmptyID
	}
	var buf bytes.Buffer
	if err := util.EncodeObject(&buf, obj); err != nil {
		return err
	}
	s.mu.Lock()
	m[id] = buf.Bytes()
	s.mu.Unlock()
	return nil
}

func (s *MemStore) get(m map[string][]byte, id string, obj any, notFound error) error {
	if id == "" {
		return ErrEmptyID
	}
	s.mu.Lock()
	b, ok := m[id]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%q: %w", id, notFound)
	}
	return util.DecodeObject(bytes.NewReader(b), obj)
}

func (s *MemStore) LoadRoute(id string) (*route.Route, error) {
	var r route.Route
	if err := s.get(s.routes, id, &r, ErrRouteNotFound); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *MemStore) SaveRoute(r *route.Route) error {
	return s.put(s.routes, r.ID, r)
}

func (s *MemStore) DeleteRoute(id string) error {
	if id == "" {
		return ErrEmptyID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.routes[id]; !ok {
		return fmt.Errorf("%q: %w", id, ErrRouteNotFound)
	}
	delete(s.routes, id)
	return nil
}

func (s *MemStore) LoadLegConfig(legID string) (*transport.LegConfig, error) {
	var cfg transport.LegConfig
	if err := s.get(s.legs, legID, &cfg, ErrLegNotFound); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *MemStore) SaveLegConfig(cfg *transport.LegConfig) error {
	return s.put(s.legs, cfg.LegID, cfg)
}

func (s *MemStore) LoadTimeline(legID string) (*timeline.Snapshot, error) {
	var snap timeline.Snapshot
	if err := s.get(s.timelines, legID, &snap, ErrTimelineNotFound); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *MemStore) SaveTimeline(snap *timeline.Snapshot) error {
	return s.put(s.timelines, snap.LegID, snap)
}
