package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/taskdeck/core/internal/domain/entities"
	"github.com/taskdeck/core/internal/ports"
)

// Store keys for the remembered view controls. Each control is persisted
// under its own key so one control's write never clobbers another's value.
const (
	prefSearchKey     = "pref:search"
	prefStatusKey     = "pref:status"
	prefPriorityKey   = "pref:priority"
	prefSortKey       = "pref:sort"
	prefShowImagesKey = "pref:show_images"
)

// PreferenceRepository persists the view-control state between sessions.
type PreferenceRepository struct {
	store ports.KVStore
}

// NewPreferenceRepository creates a preference repository over the store.
func NewPreferenceRepository(store ports.KVStore) *PreferenceRepository {
	return &PreferenceRepository{store: store}
}

// Load returns the remembered view preferences, falling back to defaults
// for any key that is absent or holds an unrecognized value.
func (r *PreferenceRepository) Load(ctx context.Context) (ports.ViewPreferences, error) {
	prefs := ports.DefaultViewPreferences()

	if v, ok, err := r.store.Get(ctx, prefSearchKey); err != nil {
		return prefs, fmt.Errorf("%w: %v", entities.ErrStore, err)
	} else if ok {
		prefs.Search = v
	}

	if v, ok, err := r.store.Get(ctx, prefStatusKey); err != nil {
		return prefs, fmt.Errorf("%w: %v", entities.ErrStore, err)
	} else if ok && ports.StatusFilter(v).IsValid() {
		prefs.Status = ports.StatusFilter(v)
	}

	if v, ok, err := r.store.Get(ctx, prefPriorityKey); err != nil {
		return prefs, fmt.Errorf("%w: %v", entities.ErrStore, err)
	} else if ok && ports.PriorityFilter(v).IsValid() {
		prefs.Priority = ports.PriorityFilter(v)
	}

	if v, ok, err := r.store.Get(ctx, prefSortKey); err != nil {
		return prefs, fmt.Errorf("%w: %v", entities.ErrStore, err)
	} else if ok && ports.SortKey(v).IsValid() {
		prefs.Sort = ports.SortKey(v)
	}

	if v, ok, err := r.store.Get(ctx, prefShowImagesKey); err != nil {
		return prefs, fmt.Errorf("%w: %v", entities.ErrStore, err)
	} else if ok {
		if show, err := strconv.ParseBool(v); err == nil {
			prefs.ShowImages = show
		}
	}

	return prefs, nil
}

// Save writes every control's value under its own key.
func (r *PreferenceRepository) Save(ctx context.Context, prefs ports.ViewPreferences) error {
	entries := map[string]string{
		prefSearchKey:     prefs.Search,
		prefStatusKey:     string(prefs.Status),
		prefPriorityKey:   string(prefs.Priority),
		prefSortKey:       string(prefs.Sort),
		prefShowImagesKey: strconv.FormatBool(prefs.ShowImages),
	}
	for key, value := range entries {
		if err := r.store.Set(ctx, key, value); err != nil {
			return fmt.Errorf("%w: %v", entities.ErrStore, err)
		}
	}
	return nil
}
