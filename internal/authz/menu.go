package authz

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/rakhadavedra/sow-analysis/internal/cache"
	rbacDatamodel "github.com/rakhadavedra/sow-analysis/internal/core/datamodel/rbac"
)

// MenuComposer turns the flat, permission-filtered menu rows into the
// two-level navigation tree the frontend renders: named groups first (sorted
// by group order), then ungrouped top-level items (sorted by display order).
type MenuComposer struct {
	repo   RepositoryAPI
	cache  *cache.Store
	logger *slog.Logger
}

func NewMenuComposer(repo RepositoryAPI, store *cache.Store, logger *slog.Logger) *MenuComposer {
	return &MenuComposer{
		repo:   repo,
		cache:  store,
		logger: logger,
	}
}

// BuildMenu returns the composed tree for the user, cached per user under the
// menus category. Entitlement filtering happens in SQL: rows whose required
// permission is not in the user's resolved set never reach this code.
func (m *MenuComposer) BuildMenu(ctx context.Context, userID int64) ([]MenuNode, error) {
	key := cache.UserMenuKey(userID)

	var cached []MenuNode
	if m.cache.GetInto(ctx, key, cache.CategoryMenus, &cached) {
		return cached, nil
	}

	rows, err := m.repo.EntitledMenuItems(ctx, userID)
	if err != nil {
		m.logger.Error("loading menu rows failed", "user_id", userID, "error", err)
		return nil, fmt.Errorf("load menu items for user %d: %w", userID, err)
	}

	tree := ComposeMenu(rows)
	m.cache.Set(ctx, key, tree, cache.CategoryMenus)
	return tree, nil
}

// ComposeMenu is a pure function of the input rows. When several rows declare
// the same group name with different group orders, the first row encountered
// fixes the group's order and icon.
func ComposeMenu(rows []rbacDatamodel.MenuItem) []MenuNode {
	groups := make(map[string]*MenuNode)
	groupOrderSeen := make([]string, 0)
	ungrouped := make([]MenuNode, 0)

	for _, row := range rows {
		item := MenuItemNode{
			Key:          row.Key,
			Label:        row.Label,
			Icon:         row.Icon,
			Path:         row.Path,
			DisplayOrder: row.DisplayOrder,
		}

		if row.GroupName == nil || *row.GroupName == "" {
			ungrouped = append(ungrouped, MenuNode{
				Key:          row.Key,
				Label:        row.Label,
				Icon:         row.Icon,
				Path:         row.Path,
				DisplayOrder: row.DisplayOrder,
			})
			continue
		}

		name := *row.GroupName
		group, ok := groups[name]
		if !ok {
			group = &MenuNode{
				GroupName:  name,
				GroupOrder: row.GroupOrder,
				GroupIcon:  row.GroupIcon,
			}
			groups[name] = group
			groupOrderSeen = append(groupOrderSeen, name)
		}
		group.Items = append(group.Items, item)
	}

	groupNodes := make([]MenuNode, 0, len(groups))
	for _, name := range groupOrderSeen {
		group := groups[name]
		if len(group.Items) == 0 {
			continue
		}
		sort.SliceStable(group.Items, func(i, j int) bool {
			return group.Items[i].DisplayOrder < group.Items[j].DisplayOrder
		})
		groupNodes = append(groupNodes, *group)
	}
	sort.SliceStable(groupNodes, func(i, j int) bool {
		return groupNodes[i].GroupOrder < groupNodes[j].GroupOrder
	})

	sort.SliceStable(ungrouped, func(i, j int) bool {
		return ungrouped[i].DisplayOrder < ungrouped[j].DisplayOrder
	})

	return append(groupNodes, ungrouped...)
}
