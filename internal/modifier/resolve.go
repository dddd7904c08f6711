package modifier

import "sort"

// GroupRows folds rows into groups in first-seen order, skipping inactive rows.
// Options inside each group are sorted by their sort order.
func GroupRows(rows []Modifier, inherited bool) []Group {
	var groups []Group
	index := make(map[string]int)

	for _, m := range rows {
		if !m.IsActive {
			continue
		}
		i, ok := index[m.GroupName]
		if !ok {
			groups = append(groups, Group{
				Name:        m.GroupName,
				Type:        m.GroupType,
				Required:    m.GroupRequired,
				SortOrder:   m.GroupSortOrder,
				Options:     []Option{},
				IsInherited: inherited,
			})
			i = len(groups) - 1
			index[m.GroupName] = i
		}

		var icon *string
		if m.OptionIcon != nil && *m.OptionIcon != "" {
			icon = m.OptionIcon
		}
		groups[i].Options = append(groups[i].Options, Option{
			ID:              m.OptionID,
			DBID:            m.ID,
			Label:           m.OptionLabel,
			Icon:            icon,
			PriceAdjustment: m.PriceAdjustment,
			IsDefault:       m.IsDefault,
			SortOrder:       m.OptionSortOrder,
		})
	}

	for i := range groups {
		opts := groups[i].Options
		sort.SliceStable(opts, func(a, b int) bool { return opts[a].SortOrder < opts[b].SortOrder })
	}
	return groups
}

// Merge applies product-over-category inheritance: a product group replaces
// the whole category group of the same name, and the remaining category
// groups are appended as inherited. The result is ordered by group sort order.
func Merge(productGroups, categoryGroups []Group) []Group {
	names := make(map[string]struct{}, len(productGroups))
	for _, g := range productGroups {
		names[g.Name] = struct{}{}
	}

	combined := make([]Group, 0, len(productGroups)+len(categoryGroups))
	combined = append(combined, productGroups...)
	for _, g := range categoryGroups {
		if _, overridden := names[g.Name]; !overridden {
			combined = append(combined, g)
		}
	}

	sort.SliceStable(combined, func(i, j int) bool { return combined[i].SortOrder < combined[j].SortOrder })
	return combined
}
