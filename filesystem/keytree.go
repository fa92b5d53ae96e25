//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of tapcsv.
//
// tapcsv is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// tapcsv is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with tapcsv. If not, see https://www.gnu.org/licenses/.

package filesystem

import (
	"context"
	"sort"
	"strings"
)

// keyNode is one directory level of a flat object-store listing.
type keyNode struct {
	files []string
	dirs  map[string]*keyNode
}

func (n *keyNode) child(name string) *keyNode {
	if n.dirs == nil {
		n.dirs = make(map[string]*keyNode)
	}
	c, ok := n.dirs[name]
	if !ok {
		c = &keyNode{}
		n.dirs[name] = c
	}
	return c
}

// walkKeys visits object keys below prefix in the same order the disk backends walk:
// the objects of a level in lexical order, then each "/"-separated sublevel in lexical order.
// Keys ending in "/" are folder placeholders and are skipped.
func walkKeys(ctx context.Context, prefix string, keys []string, fn WalkFunc) error {
	root := &keyNode{}
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rel := strings.TrimPrefix(key, prefix)
		if rel == "" || strings.HasSuffix(rel, "/") {
			continue
		}
		parts := strings.Split(rel, "/")
		n := root
		for _, dir := range parts[:len(parts)-1] {
			n = n.child(dir)
		}
		n.files = append(n.files, key)
	}
	return root.walk(ctx, fn)
}

func (n *keyNode) walk(ctx context.Context, fn WalkFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	sort.Strings(n.files)
	for _, key := range n.files {
		if err := fn(key); err != nil {
			return err
		}
	}

	names := make([]string, 0, len(n.dirs))
	for name := range n.dirs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := n.dirs[name].walk(ctx, fn); err != nil {
			return err
		}
	}
	return nil
}

// splitURL splits "scheme://bucket/key" into bucket and key.
func splitURL(scheme, path string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(path, scheme+"://")
	if !found {
		return "", "", false
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", false
	}
	return bucket, key, true
}

// dirPrefix returns key as a listing prefix that only matches keys below it.
func dirPrefix(key string) string {
	if key == "" || strings.HasSuffix(key, "/") {
		return key
	}
	return key + "/"
}
