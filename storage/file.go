// storage/file.go
// Copyright(c) 2025-2026 starlink-dashboard contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"github.com/bcl1713/starlink-dashboard-sub010/log"
	"github.com/bcl1713/starlink-dashboard-sub010/route"
	"github.com/bcl1713/starlink-dashboard-sub010/timeline"
	"github.com/bcl1713/starlink-dashboard-sub010/transport"
	"github.com/bcl1713/starlink-dashboard-sub010/util"
)

const (
	kindLeg      = "legs"
	kindRoute    = "routes"
	kindTimeline = "timelines"
)

// FileStore persists objects under dir, one file per object, grouped in a
// subdirectory per kind. Ids are path-escaped so arbitrary route and leg
// ids map to safe filenames.
type FileStore struct {
	dir string
	lg  *log.Logger
}

var _ Store = (*FileStore)(nil)

func NewFileStore(dir string, lg *log.Logger) (*FileStore, error) {
	for _, kind := range []string{kindLeg, kindRoute, kindTimeline} {
		if err := os.MkdirAll(filepath.Join(dir, kind), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	return &FileStore{dir: dir, lg: lg}, nil
}

func (s *FileStore) path(kind, id string) string {
	return filepath.Join(s.dir, kind, url.PathEscape(id)+".msgpack.zst")
}

func (s *FileStore) save(kind, id string, obj any) error {
	if id == "" {
		return ErrEmptyID
	}
	fn := s.path(kind, id)
	f, err := os.Create(fn)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", fn, err)
	}
	if err := util.EncodeObject(f, obj); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", fn, err)
	}
	s.lg.Debugf("%s: saved %s", fn, kind)
	return nil
}

func (s *FileStore) load(kind, id string, obj any, notFound error) error {
	if id == "" {
		return ErrEmptyID
	}
	fn := s.path(kind, id)
	f, err := os.Open(fn)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%q: %w", id, notFound)
	}
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", fn, err)
	}
	defer f.Close()
	return util.DecodeObject(f, obj)
}

func (s *FileStore) LoadRoute(id string) (*route.Route, error) {
	var r route.Route
	if err := s.load(kindRoute, id, &r, ErrRouteNotFound); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *FileStore) SaveRoute(r *route.Route) error {
	return s.save(kindRoute, r.ID, r)
}

func (s *FileStore) DeleteRoute(id string) error {
	if id == "" {
		return ErrEmptyID
	}
	err := os.Remove(s.path(kindRoute, id))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%q: %w", id, ErrRouteNotFound)
	}
	return err
}

func (s *FileStore) LoadLegConfig(legID string) (*transport.LegConfig, error) {
	var cfg transport.LegConfig
	if err := s.load(kindLeg, legID, &cfg, ErrLegNotFound); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *FileStore) SaveLegConfig(cfg *transport.LegConfig) error {
	return s.save(kindLeg, cfg.LegID, cfg)
}

func (s *FileStore) LoadTimeline(legID string) (*timeline.Snapshot, error) {
	var snap timeline.Snapshot
	if err := s.load(kindTimeline, legID, &snap, ErrTimelineNotFound); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *FileStore) SaveTimeline(snap *timeline.Snapshot) error {
	return s.save(kindTimeline, snap.LegID, snap)
}
