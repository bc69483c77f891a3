package cache

import "github.com/cockroachdb/errors"

// Channel is a named logical cache partition, one per domain collection.
// Its key is the channel name; per-entity entries live under Sub keys.
type Channel string

const (
	Spells        Channel = "spells"
	Backgrounds   Channel = "backgrounds"
	Feats         Channel = "feats"
	Monsters      Channel = "monsters"
	Characters    Channel = "characters"
	SpellFilters  Channel = "spell-filters"
	FeatFilters   Channel = "feat-filters"
	Theme         Channel = "theme"
	Favorites     Channel = "favorites"
	Quotes        Channel = "quotes"
	Relationships Channel = "relationships"
	Notes         Channel = "notes"

	FavoriteSpells      Channel = "favorites-spells"
	FavoriteFeats       Channel = "favorites-feats"
	FavoriteBackgrounds Channel = "favorites-backgrounds"
)

var channels = []Channel{
	Spells, Backgrounds, Feats, Monsters, Characters,
	SpellFilters, FeatFilters, Theme, Favorites,
	Quotes, Relationships, Notes,
	FavoriteSpells, FavoriteFeats, FavoriteBackgrounds,
}

// Channels returns every known channel.
func Channels() []Channel {
	out := make([]Channel, len(channels))
	copy(out, channels)
	return out
}

// ParseChannel validates a channel name.
func ParseChannel(s string) (Channel, error) {
	c := Channel(s)
	if !c.Valid() {
		return "", errors.Newf("cache: unknown channel %q", s)
	}
	return c, nil
}

// Valid reports whether c is one of the known channels.
func (c Channel) Valid() bool {
	for _, known := range channels {
		if c == known {
			return true
		}
	}
	return false
}

// Key is the cache key of the channel's collection.
func (c Channel) Key() string { return string(c) }

// Sub is the cache key of one entity inside the channel, e.g. "characters:42".
func (c Channel) Sub(id string) string { return string(c) + ":" + id }

func (c Channel) String() string { return string(c) }

// owns reports whether key belongs to the channel.
func (c Channel) owns(key string) bool {
	n := len(c)
	return key == string(c) || (len(key) > n && key[n] == ':' && key[:n] == string(c))
}
