package note

// DefaultCategories is the category list a fresh store starts with.
var DefaultCategories = []string{"Personal", "Work", "Ideas", "To-Do", "Shopping", "Misc"}

// SeedNotes returns the starter notes shown on first run (or after the
// persisted state turns out to be unreadable). now is epoch milliseconds;
// offsets keep the relative creation order stable regardless of wall clock.
func SeedNotes(now int64) []Note {
	return []Note{
		{
			ID:        "seed-1",
			Title:     "Project Ideas 🚀",
			Content:   "1. AI-powered plant waterer\n2. Minimalist habit tracker\n3. Recipe generator based on fridge items",
			Category:  "Ideas",
			Color:     "blue",
			Font:      "sans",
			CreatedAt: now - 100000,
			UpdatedAt: now,
		},
		{
			ID:        "seed-2",
			Title:     "Grocery List",
			Content:   "- Milk\n- Eggs\n- Sourdough bread\n- Avocados\n- Coffee beans",
			Category:  "Shopping",
			Color:     "yellow",
			Font:      "mono",
			CreatedAt: now - 200000,
			UpdatedAt: now - 50000,
		},
		{
			ID:        "seed-3",
			Title:     "Meeting Notes: Q4 Review",
			Content:   "Key takeaways:\n- Revenue up by 15%\n- User retention needs focus\n- Launch date set for Dec 15th",
			Category:  "Work",
			Color:     "white",
			Font:      "sans",
			CreatedAt: now - 300000,
			UpdatedAt: now - 300000,
		},
		{
			ID:        "seed-4",
			Title:     "Daily Affirmations",
			Content:   "I am capable.\nI am calm.\nI focus on what I can control.",
			Category:  "Personal",
			Color:     "pink",
			Font:      "serif",
			CreatedAt: now - 400000,
			UpdatedAt: now - 400000,
		},
		{
			ID:        "seed-5",
			Title:     "Books to Read",
			Content:   "Atomic Habits\nDeep Work\nThe Psychology of Money",
			Category:  "Personal",
			Color:     "purple",
			Font:      "serif",
			CreatedAt: now - 500000,
			UpdatedAt: now - 500000,
		},
		{
			ID:        "seed-6",
			Title:     "Gym Routine",
			Content:   "Mon: Chest/Triceps\nTue: Back/Biceps\nWed: Legs\nThu: Shoulders\nFri: Cardio",
			Category:  "Misc",
			Color:     "green",
			Font:      "sans",
			CreatedAt: now - 600000,
			UpdatedAt: now - 600000,
		},
	}
}
