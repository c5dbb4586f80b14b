package cli

import (
	"sciquest/internal/domain"
	"sciquest/internal/seed"
)

// sampleContent is what the in-memory store starts with when no seed file
// is configured. Pair it with `sciquest token demo-student`.
func sampleContent() seed.File {
	opts := func(a, b, c, d string) []domain.Option {
		return []domain.Option{{Key: "a", Text: a}, {Key: "b", Text: b}, {Key: "c", Text: c}, {Key: "d", Text: d}}
	}
	return seed.File{
		Profiles: []domain.Profile{
			{ID: "demo-student", Name: "Demo Student", Role: domain.RoleStudent, ClassSection: "8A"},
			{ID: "demo-teacher", Name: "Demo Teacher", Role: domain.RoleTeacher},
		},
		Topics: []domain.Topic{{
			ID:          "forces-and-motion",
			Title:       "Forces and Motion",
			Standard:    "MS-PS2-2",
			Description: "Balanced and unbalanced forces, inertia, and how mass affects acceleration.",
			WeekNumber:  1,
			IsActive:    true,
			LessonCards: []domain.LessonCard{
				{ID: "fm-card-1", Title: "Inertia", Body: "An object keeps its state of motion unless a net force acts on it.", OrderIndex: 1},
				{ID: "fm-card-2", Title: "Net force", Body: "Add the forces on an object. If they do not cancel, the object accelerates.", OrderIndex: 2},
			},
			Questions: []domain.Question{
				{
					ID:            "fm-q1",
					Text:          "A book rests on a table. Which statement about the forces on it is true?",
					Options:       opts("There are no forces on it", "The forces on it are balanced", "Gravity is stronger than the table's push", "Only the table pushes on it"),
					CorrectOption: "b",
					Explanation:   "Gravity pulls down and the table pushes up equally, so the net force is zero.",
					Hint:          "The book is not moving. What does that say about the net force?",
					OrderIndex:    1,
				},
				{
					ID:            "fm-q2",
					Text:          "The same push is applied to an empty cart and a full cart. Which accelerates more?",
					Options:       opts("The full cart", "Both the same", "The empty cart", "Neither moves"),
					CorrectOption: "c",
					Explanation:   "With the same force, less mass means more acceleration.",
					Hint:          "Think about a = F / m.",
					OrderIndex:    2,
				},
				{
					ID:            "fm-q3",
					Text:          "Why do passengers lurch forward when a bus stops suddenly?",
					Options:       opts("Inertia", "Friction pushes them forward", "Gravity increases", "The seats push them"),
					CorrectOption: "a",
					Explanation:   "Their bodies keep moving forward because of inertia while the bus slows down.",
					Hint:          "Newton's first law.",
					OrderIndex:    3,
				},
				{
					ID:            "fm-q4",
					Text:          "What is the unit of force?",
					Options:       opts("Joule", "Watt", "Kilogram", "Newton"),
					CorrectOption: "d",
					Explanation:   "Force is measured in newtons (N).",
					Hint:          "It is named after the scientist behind the laws of motion.",
					OrderIndex:    4,
				},
			},
		}},
	}
}
