package corpus

import (
	"context"
	"fmt"
)

// Catalog is the in-memory champion list questions draw choices from.
type Catalog struct {
	list   []Champion
	byID   map[int]Champion
	imgURL string
}

func NewCatalog(champions []Champion, imgURL string) *Catalog {
	c := &Catalog{byID: make(map[int]Champion, len(champions)), imgURL: imgURL}
	for _, ch := range champions {
		c.list = append(c.list, ch)
		c.byID[ch.ID] = ch
	}
	return c
}

func LoadCatalog(ctx context.Context, store Store, imgURL string) (*Catalog, error) {
	champions, err := store.Champions(ctx)
	if err != nil {
		return nil, err
	}
	if len(champions) == 0 {
		return nil, fmt.Errorf("champion catalog is empty, run -setup cache-data first")
	}
	return NewCatalog(champions, imgURL), nil
}

func (c *Catalog) All() []Champion { return c.list }

func (c *Catalog) Get(id int) (Champion, bool) {
	ch, ok := c.byID[id]
	return ch, ok
}

func (c *Catalog) ImageURL(ch Champion) string {
	return c.imgURL + ch.Key + ".png"
}
