// Package genre provides keyword-based genre classification for catalog books.
package genre

import (
	"sort"
	"strings"

	"github.com/hyperjump/osusume/internal/models"
)

// Keyword tables per genre. Classification is a heuristic over title and
// author text; the catalog carries no genre labels.
var genreKeywords = map[string][]string{
	"fantasy": {
		"fantasy", "magic", "dragon", "wizard", "magical", "enchanted",
		"fairy", "mythical", "quest", "prophecy", "sword", "sorcery",
		"hobbit", "elf", "dwarf", "tolkien", "potter", "chronicles",
	},
	"romance": {
		"romance", "love", "heart", "passion", "wedding", "bride",
		"dating", "relationship", "romantic", "affair", "lover",
	},
	"mystery": {
		"mystery", "detective", "crime", "murder", "investigation",
		"suspect", "clue", "police", "thriller", "suspense", "noir",
	},
	"science_fiction": {
		"science", "fiction", "space", "future", "robot", "alien",
		"galaxy", "planet", "time", "travel", "cyberpunk", "dystopian",
	},
	"horror": {
		"horror", "scary", "ghost", "haunted", "vampire", "zombie",
		"supernatural", "evil", "dark", "terror", "nightmare",
	},
	"adventure": {
		"adventure", "journey", "exploration", "expedition", "survival",
		"treasure", "island", "wilderness", "danger", "action",
	},
	"biography": {
		"biography", "memoir", "life", "autobiography", "story", "born",
		"childhood", "personal", "history", "true", "real",
	},
	"history": {
		"history", "historical", "war", "ancient", "medieval", "century",
		"empire", "revolution", "battle", "past", "civilization",
	},
	"philosophy": {
		"philosophy", "philosophical", "meaning", "existence", "truth",
		"wisdom", "thought", "consciousness", "ethics", "morality",
	},
	"self_help": {
		"self", "help", "improvement", "success", "motivational",
		"productivity", "habits", "mindset", "personal", "development",
	},
}

// Classifier matches books to genres by keyword.
type Classifier struct {
	keywords map[string][]string
}

// NewClassifier returns a classifier with the built-in genre keyword tables.
func NewClassifier() *Classifier {
	return &Classifier{keywords: genreKeywords}
}

// Genres lists the known genres in sorted order.
func (c *Classifier) Genres() []string {
	genres := make([]string, 0, len(c.keywords))
	for g := range c.keywords {
		genres = append(genres, g)
	}
	sort.Strings(genres)
	return genres
}

// Matches reports whether the book matches the genre. Unknown genres fall
// back to matching the raw genre string itself.
func (c *Classifier) Matches(b *models.Book, genre string) bool {
	text := strings.ToLower(b.Title + " " + b.Authors)
	keywords, ok := c.keywords[strings.ToLower(genre)]
	if !ok {
		keywords = []string{strings.ToLower(genre)}
	}
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Predicate returns a row filter for the genre over an index-aligned catalog,
// suitable for subsetting both the catalog and the feature matrix together.
func (c *Classifier) Predicate(genre string) func(*models.Book) bool {
	return func(b *models.Book) bool {
		return c.Matches(b, genre)
	}
}
