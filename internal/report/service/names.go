package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/plantmetrics/plant/internal/cache"
)

const (
	// Reports fall back to this when a referenced row no longer exists.
	namePlaceholder = "N/A"

	nameCacheTTL = 5 * time.Minute
)

// nameResolver batch-resolves profile and chapter display names. One IN query
// per distinct id set, fronted by a short-lived cache so consecutive report
// runs do not repeat lookups.
type nameResolver struct {
	db       *gorm.DB
	profiles cache.Cache[snowflake.ID, string]
	chapters cache.Cache[snowflake.ID, string]
	details  cache.Cache[snowflake.ID, profileDetail]
}

// profileDetail is the resolved pair shown on detail sheets.
type profileDetail struct {
	FullName     string
	BusinessName string
}

func newNameResolver(db *gorm.DB) *nameResolver {
	return &nameResolver{
		db:       db,
		profiles: cache.NewTTLCache[snowflake.ID, string](),
		chapters: cache.NewTTLCache[snowflake.ID, string](),
		details:  cache.NewTTLCache[snowflake.ID, profileDetail](),
	}
}

type nameRow struct {
	ID   snowflake.ID
	Name string
}

func (r *nameResolver) ProfileNames(ctx context.Context, ids []snowflake.ID) (map[snowflake.ID]string, error) {
	return r.batch(ctx, r.profiles, ids,
		`SELECT id, full_name AS name FROM profiles WHERE id IN ?`)
}

func (r *nameResolver) ChapterNames(ctx context.Context, ids []snowflake.ID) (map[snowflake.ID]string, error) {
	return r.batch(ctx, r.chapters, ids,
		`SELECT id, name FROM chapters WHERE id IN ?`)
}

func (r *nameResolver) ProfileDetails(ctx context.Context, ids []snowflake.ID) (map[snowflake.ID]profileDetail, error) {
	resolved := make(map[snowflake.ID]profileDetail, len(ids))
	missing := make([]snowflake.ID, 0, len(ids))
	seen := make(map[snowflake.ID]struct{}, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if detail, ok := r.details.Get(id); ok {
			resolved[id] = detail
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return resolved, nil
	}

	type detailRow struct {
		ID           snowflake.ID
		FullName     string
		BusinessName string
	}
	var rows []detailRow
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, full_name, COALESCE(business_name, '') AS business_name
		 FROM profiles WHERE id IN ?`,
		missing,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		detail := profileDetail{FullName: row.FullName, BusinessName: row.BusinessName}
		resolved[row.ID] = detail
		r.details.Set(row.ID, detail, nameCacheTTL)
	}
	return resolved, nil
}

func (r *nameResolver) batch(
	ctx context.Context,
	store cache.Cache[snowflake.ID, string],
	ids []snowflake.ID,
	query string,
) (map[snowflake.ID]string, error) {
	resolved := make(map[snowflake.ID]string, len(ids))
	missing := make([]snowflake.ID, 0, len(ids))
	seen := make(map[snowflake.ID]struct{}, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if name, ok := store.Get(id); ok {
			resolved[id] = name
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return resolved, nil
	}

	var rows []nameRow
	if err := r.db.WithContext(ctx).Raw(query, missing).Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		resolved[row.ID] = row.Name
		store.Set(row.ID, row.Name, nameCacheTTL)
	}
	return resolved, nil
}

// lookup degrades a missing or nil reference to the placeholder.
func lookup(names map[snowflake.ID]string, id *snowflake.ID) string {
	if id == nil {
		return namePlaceholder
	}
	if name, ok := names[*id]; ok && name != "" {
		return name
	}
	return namePlaceholder
}

func lookupID(names map[snowflake.ID]string, id snowflake.ID) string {
	if name, ok := names[id]; ok && name != "" {
		return name
	}
	return namePlaceholder
}
