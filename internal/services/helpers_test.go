package services

import (
	"sync"
	"time"

	"rental_app_backend/internal/notifications"
)

var fixedNow = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notifications.Message
	err  error
}

func (n *recordingNotifier) Enqueue(msg notifications.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.msgs = append(n.msgs, msg)
	return nil
}

func (n *recordingNotifier) kinds() []notifications.Kind {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notifications.Kind
	for _, m := range n.msgs {
		out = append(out, m.Kind)
	}
	return out
}

// sequentialIDs hands out the given ids in order, then falls back to generated ones.
func sequentialIDs(ids ...string) IDGenerator {
	var mu sync.Mutex
	return func(now time.Time) string {
		mu.Lock()
		defer mu.Unlock()
		if len(ids) == 0 {
			return NewApplicationID(now)
		}
		id := ids[0]
		ids = ids[1:]
		return id
	}
}

func validFields() map[string]interface{} {
	return map[string]interface{}{
		"propertyAddress":    "12 Elm St, Springfield",
		"unitNumber":         "4B",
		"moveInDate":         "2026-04-01",
		"leaseTerm":          "12 months",
		"firstName":          "Jane",
		"lastName":           "Doe",
		"email":              "jane@example.com",
		"phone":              "555-123-4567",
		"dob":                "1990-05-17",
		"currentAddress":     "9 Oak Ave",
		"residencyStart":     "2021-01-01",
		"rentAmount":         "1,200",
		"reasonLeaving":      "Relocating",
		"landlordName":       "Sam Lee",
		"landlordPhone":      "(555) 222-3333",
		"employmentStatus":   "Full-time",
		"employer":           "Acme",
		"jobTitle":           "Engineer",
		"employmentDuration": "3 years",
		"supervisorName":     "Pat Kim",
		"supervisorPhone":    "555 444 5555",
		"monthlyIncome":      "$6,000",
		"ref1Name":           "Chris Ray",
		"ref1Phone":          "5556667777",
		"emergencyName":      "Alex Doe",
		"emergencyPhone":     "5558889999",
		"termsAgree":         true,
	}
}
