// Package catalog is the in-memory pharmacy data service: the medicine
// master list, patient order history, and prescription records the
// collaborator agents consult.
package catalog

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Medicine is one stock-keeping unit in the master list.
type Medicine struct {
	MedicineID           string `json:"medicine_id"`
	MedicineName         string `json:"medicine_name"`
	Strength             string `json:"strength"`
	Form                 string `json:"form"`
	StockLevel           int    `json:"stock_level"`
	PrescriptionRequired bool   `json:"prescription_required"`
	Category             string `json:"category"`
	Discontinued         bool   `json:"discontinued"`
	MaxQuantityPerOrder  int    `json:"max_quantity_per_order"`
	ControlledSubstance  bool   `json:"controlled_substance"`
}

// OrderRecord is one line of a patient's order history.
type OrderRecord struct {
	PatientID    string
	MedicineName string
	Strength     string
	Quantity     int
	OrderDate    time.Time
}

// PrescriptionRecord is a verified prescription on file for a patient.
type PrescriptionRecord struct {
	PatientID    string
	MedicineName string
	Strength     string
	IssuedAt     time.Time
	ExpiresAt    time.Time
}

// RefillSuggestion describes a medicine predicted to run out soon.
type RefillSuggestion struct {
	MedicineName  string
	LastOrderDate time.Time
	Quantity      int
	RefillDate    time.Time
	DaysRemaining int
}

// InventoryStats summarizes the master list.
type InventoryStats struct {
	TotalSKUs            int `json:"total_skus"`
	OutOfStock           int `json:"out_of_stock"`
	LowStock             int `json:"low_stock"`
	PrescriptionRequired int `json:"prescription_required"`
	Discontinued         int `json:"discontinued"`
}

// Service holds the seeded pharmacy data. Stock mutations are guarded so
// concurrent fulfillment calls stay consistent.
type Service struct {
	mu            sync.RWMutex
	medicines     []Medicine
	orders        []OrderRecord
	prescriptions []PrescriptionRecord
}

// basePrices maps dosage form to a mock unit price.
var basePrices = map[string]float64{
	"Tablet":    5.00,
	"Capsule":   7.00,
	"Syrup":     12.00,
	"Injection": 25.00,
	"Inhaler":   35.00,
}

const defaultBasePrice = 5.00

// NewService creates a data service with the built-in seed data.
func NewService() *Service {
	return &Service{
		medicines:     seedMedicines(),
		orders:        seedOrders(),
		prescriptions: seedPrescriptions(),
	}
}

// SearchMedicine returns all SKUs whose name contains query, case
// insensitively, in master-list order.
func (s *Service) SearchMedicine(query string) []Medicine {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var matches []Medicine
	for _, m := range s.medicines {
		if strings.Contains(strings.ToLower(m.MedicineName), q) {
			matches = append(matches, m)
		}
	}
	return matches
}

// FindMedicine returns the best SKU match for a name plus optional
// strength and form refinements.
func (s *Service) FindMedicine(name, strength, form string) (Medicine, bool) {
	matches := s.SearchMedicine(name)
	if len(matches) == 0 {
		return Medicine{}, false
	}
	best := matches[0]
	for _, m := range matches {
		if form != "" && strings.EqualFold(m.Form, form) {
			best = m
			break
		}
		if strength != "" && strings.EqualFold(m.Strength, strength) {
			best = m
		}
	}
	return best, true
}

// GetMedicineByID returns the SKU with the given id.
func (s *Service) GetMedicineByID(id string) (Medicine, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.medicines {
		if m.MedicineID == id {
			return m, true
		}
	}
	return Medicine{}, false
}

// AllMedicines returns a copy of the master list.
func (s *Service) AllMedicines() []Medicine {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Medicine, len(s.medicines))
	copy(out, s.medicines)
	return out
}

// UnitPrice resolves the mock unit price for a medicine by its dosage
// form. It satisfies the pricing catalog interface.
func (s *Service) UnitPrice(medicineName, strength string) (float64, bool) {
	m, ok := s.FindMedicine(medicineName, strength, "")
	if !ok {
		return 0, false
	}
	if p, ok := basePrices[m.Form]; ok {
		return p, true
	}
	return defaultBasePrice, true
}

// DecreaseStock reserves quantity units of a medicine. It fails when the
// medicine is unknown or stock is insufficient.
func (s *Service) DecreaseStock(medicineName string, quantity int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := strings.ToLower(strings.TrimSpace(medicineName))
	for i := range s.medicines {
		if strings.Contains(strings.ToLower(s.medicines[i].MedicineName), q) {
			if s.medicines[i].StockLevel < quantity {
				return false
			}
			s.medicines[i].StockLevel -= quantity
			return true
		}
	}
	return false
}

// PatientOrderHistory returns a patient's past orders, oldest first.
func (s *Service) PatientOrderHistory(patientID string) []OrderRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []OrderRecord
	for _, o := range s.orders {
		if o.PatientID == patientID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderDate.Before(out[j].OrderDate) })
	return out
}

// RecordOrder appends a confirmed order line to the history.
func (s *Service) RecordOrder(rec OrderRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, rec)
}

// HasValidPrescription reports whether the patient holds an unexpired
// prescription for the medicine. An empty strength on either side matches
// any strength.
func (s *Service) HasValidPrescription(patientID, medicineName, strength string, now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	name := strings.ToLower(strings.TrimSpace(medicineName))
	want := strings.ToLower(strings.TrimSpace(strength))
	for _, p := range s.prescriptions {
		if p.PatientID != patientID {
			continue
		}
		if !strings.Contains(strings.ToLower(p.MedicineName), name) {
			continue
		}
		have := strings.ToLower(strings.TrimSpace(p.Strength))
		if want != "" && have != "" && want != have {
			continue
		}
		if now.After(p.ExpiresAt) {
			continue
		}
		return true
	}
	return false
}

// AddPrescription files a verified prescription for a patient.
func (s *Service) AddPrescription(rec PrescriptionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prescriptions = append(s.prescriptions, rec)
}

// MedicinesNeedingRefill predicts refills due within daysAhead, soonest
// first. Supply is estimated at one unit per day.
func (s *Service) MedicinesNeedingRefill(patientID string, now time.Time, daysAhead int) []RefillSuggestion {
	history := s.PatientOrderHistory(patientID)
	if len(history) == 0 {
		return nil
	}

	latest := make(map[string]OrderRecord)
	var order []string
	for _, rec := range history {
		key := strings.ToLower(rec.MedicineName)
		if _, seen := latest[key]; !seen {
			order = append(order, key)
		}
		latest[key] = rec
	}

	var suggestions []RefillSuggestion
	for _, key := range order {
		rec := latest[key]
		daysSupply := rec.Quantity
		if daysSupply <= 0 {
			daysSupply = 30
		}
		refillDate := rec.OrderDate.AddDate(0, 0, daysSupply)
		daysRemaining := int(refillDate.Sub(now).Hours() / 24)
		if daysRemaining <= daysAhead {
			if daysRemaining < 0 {
				daysRemaining = 0
			}
			suggestions = append(suggestions, RefillSuggestion{
				MedicineName:  rec.MedicineName,
				LastOrderDate: rec.OrderDate,
				Quantity:      rec.Quantity,
				RefillDate:    refillDate,
				DaysRemaining: daysRemaining,
			})
		}
	}
	sort.Slice(suggestions, func(i, j int) bool {
		return suggestions[i].DaysRemaining < suggestions[j].DaysRemaining
	})
	return suggestions
}

// Stats summarizes the current master list.
func (s *Service) Stats() InventoryStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := InventoryStats{TotalSKUs: len(s.medicines)}
	for _, m := range s.medicines {
		switch {
		case m.Discontinued:
			stats.Discontinued++
		case m.StockLevel == 0:
			stats.OutOfStock++
		case m.StockLevel <= 20:
			stats.LowStock++
		}
		if m.PrescriptionRequired {
			stats.PrescriptionRequired++
		}
	}
	return stats
}
