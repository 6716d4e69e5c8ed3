package cache

import (
	"fmt"
	"strings"
)

// Entity types and collection sentinels used in tags
const (
	TypeProduct = "Product"
	TypeUser    = "User"

	IDList       = "LIST"
	IDCategories = "CATEGORIES"

	slugPrefix = "slug:"
)

// Tag links cached data to the entity or collection it reflects
type Tag struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

func (t Tag) String() string {
	return t.Type + ":" + t.ID
}

// ParseTag reverses Tag.String
func ParseTag(s string) (Tag, error) {
	typ, id, ok := strings.Cut(s, ":")
	if !ok || typ == "" || id == "" {
		return Tag{}, fmt.Errorf("invalid tag %q", s)
	}
	return Tag{Type: typ, ID: id}, nil
}

func ProductTag(id string) Tag       { return Tag{Type: TypeProduct, ID: id} }
func ProductSlugTag(slug string) Tag { return Tag{Type: TypeProduct, ID: slugPrefix + slug} }
func ProductListTag() Tag            { return Tag{Type: TypeProduct, ID: IDList} }
func CategoriesTag() Tag             { return Tag{Type: TypeProduct, ID: IDCategories} }
func UserTag(id string) Tag          { return Tag{Type: TypeUser, ID: id} }
func UserListTag() Tag               { return Tag{Type: TypeUser, ID: IDList} }

// ProductListTags are provided by a product listing: one tag per product
// plus the collection sentinels.
func ProductListTags(ids []string) []Tag {
	tags := make([]Tag, 0, len(ids)+2)
	for _, id := range ids {
		tags = append(tags, ProductTag(id))
	}
	return append(tags, ProductListTag(), CategoriesTag())
}

// ProductTags are provided by a single product lookup
func ProductTags(id, slug string) []Tag {
	return []Tag{ProductTag(id), ProductSlugTag(slug)}
}

// ProductCreated returns the tags invalidated by creating a product
func ProductCreated(id, slug string) []Tag {
	return []Tag{ProductTag(id), ProductListTag(), CategoriesTag(), ProductSlugTag(slug)}
}

// ProductUpdated returns the tags invalidated by updating a product. A slug
// change also invalidates lookups under the old slug.
func ProductUpdated(id, oldSlug, newSlug string) []Tag {
	tags := []Tag{ProductTag(id), ProductListTag(), CategoriesTag(), ProductSlugTag(newSlug)}
	if oldSlug != "" && oldSlug != newSlug {
		tags = append(tags, ProductSlugTag(oldSlug))
	}
	return tags
}

// ProductDeleted returns the tags invalidated by deleting a product
func ProductDeleted(id, slug string) []Tag {
	return []Tag{ProductTag(id), ProductListTag(), CategoriesTag(), ProductSlugTag(slug)}
}

// UserChanged returns the tags invalidated by any user mutation
func UserChanged(id string) []Tag {
	return []Tag{UserTag(id), UserListTag()}
}

// UserListTags are provided by a user listing
func UserListTags(ids []string) []Tag {
	tags := make([]Tag, 0, len(ids)+1)
	for _, id := range ids {
		tags = append(tags, UserTag(id))
	}
	return append(tags, UserListTag())
}
