package location

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backend-cityfix/internal/docstore"
	"backend-cityfix/internal/shared/geo"
)

var ErrNotFound = errors.New("saved location not found")

// Service keeps a user's saved places under users/{uid}/savedLocations.
type Service struct {
	store docstore.Store
	now   func() time.Time
}

func NewService(store docstore.Store) *Service {
	return &Service{store: store, now: time.Now}
}

func collection(userID string) string {
	return docstore.Join("users", userID, "savedLocations")
}

func (l SavedLocation) fields() docstore.Fields {
	f := docstore.Fields{
		"name":      l.Name,
		"address":   l.Address,
		"lat":       l.Lat,
		"lng":       l.Lng,
		"createdAt": l.CreatedAt,
	}
	if l.PlaceID != "" {
		f["placeId"] = l.PlaceID
	}
	return f
}

func fromDoc(doc docstore.Document) (SavedLocation, error) {
	var l SavedLocation
	if err := doc.DataTo(&l); err != nil {
		return SavedLocation{}, err
	}
	l.ID = doc.ID
	return l, nil
}

func (s *Service) Save(ctx context.Context, userID string, input SavedLocation) (SavedLocation, error) {
	input.CreatedAt = s.now().UnixMilli()
	id, err := s.store.Add(ctx, collection(userID), input.fields())
	if err != nil {
		return SavedLocation{}, err
	}
	input.ID = id
	return input, nil
}

func (s *Service) Get(ctx context.Context, userID, id string) (SavedLocation, error) {
	doc, err := s.store.Get(ctx, docstore.Join(collection(userID), id))
	if errors.Is(err, docstore.ErrNotFound) {
		return SavedLocation{}, ErrNotFound
	}
	if err != nil {
		return SavedLocation{}, err
	}
	return fromDoc(doc)
}

// Update applies the non-zero fields of patch.
func (s *Service) Update(ctx context.Context, userID, id string, patch SavedLocation) (SavedLocation, error) {
	loc, err := s.Get(ctx, userID, id)
	if err != nil {
		return SavedLocation{}, err
	}
	if patch.Name != "" {
		loc.Name = patch.Name
	}
	if patch.Address != "" {
		loc.Address = patch.Address
	}
	if patch.Lat != 0 {
		loc.Lat = patch.Lat
	}
	if patch.Lng != 0 {
		loc.Lng = patch.Lng
	}
	if patch.PlaceID != "" {
		loc.PlaceID = patch.PlaceID
	}
	if err := s.store.Update(ctx, docstore.Join(collection(userID), id), loc.fields()); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return SavedLocation{}, ErrNotFound
		}
		return SavedLocation{}, err
	}
	return loc, nil
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.store.Delete(ctx, docstore.Join(collection(userID), id))
}

func listQuery(userID string) docstore.Query {
	return docstore.Query{Collection: collection(userID), OrderBy: "createdAt", Direction: docstore.Desc}
}

func toLocations(docs []docstore.Document) ([]SavedLocation, error) {
	out := make([]SavedLocation, 0, len(docs))
	for _, doc := range docs {
		l, err := fromDoc(doc)
		if err != nil {
			return nil, fmt.Errorf("malformed location %s: %w", doc.ID, err)
		}
		out = append(out, l)
	}
	return out, nil
}

// List returns the user's saved locations, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]SavedLocation, error) {
	page, err := s.store.Query(ctx, listQuery(userID))
	if err != nil {
		return nil, err
	}
	return toLocations(page.Docs)
}

// Search returns saved locations within radiusKm of (lat, lng).
func (s *Service) Search(ctx context.Context, userID string, lat, lng, radiusKm float64) ([]SavedLocation, error) {
	all, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	var results []SavedLocation
	for _, l := range all {
		if geo.HaversineKm(lat, lng, l.Lat, l.Lng) <= radiusKm {
			results = append(results, l)
		}
	}
	return results, nil
}

// Watch calls fn with the full list now and after every change, until the
// returned stop func is called or ctx ends. Malformed snapshots are skipped.
func (s *Service) Watch(ctx context.Context, userID string, fn func([]SavedLocation)) (func(), error) {
	return s.store.Subscribe(ctx, listQuery(userID), func(docs []docstore.Document) {
		locs, err := toLocations(docs)
		if err != nil {
			return
		}
		fn(locs)
	})
}
