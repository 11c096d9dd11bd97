package report

import (
	"context"
	"math"
	"sort"
	"sync"
)

type memoryRepository struct {
	mu      sync.RWMutex
	reports map[string]Report
}

// NewMemoryRepository builds an in-memory report store for testing.
func NewMemoryRepository() Repository {
	return &memoryRepository{reports: make(map[string]Report)}
}

func (r *memoryRepository) Create(_ context.Context, rep Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports[rep.ID] = rep
	return nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rep, ok := r.reports[id]
	if !ok {
		return Report{}, ErrNotFound
	}
	return rep, nil
}

func (r *memoryRepository) SetApproval(_ context.Context, id string, approved bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep, ok := r.reports[id]
	if !ok {
		return ErrNotFound
	}
	rep.Approved = approved
	r.reports[id] = rep
	return nil
}

func (r *memoryRepository) Estimate(_ context.Context, q EstimateQuery) (Estimate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var comparable []Report
	for _, rep := range r.reports {
		if !rep.Approved || rep.Make != q.Make || rep.Model != q.Model {
			continue
		}
		if math.Abs(rep.Lng-q.Lng) > estimateGeoRange || math.Abs(rep.Lat-q.Lat) > estimateGeoRange {
			continue
		}
		if abs(rep.Year-q.Year) > estimateYearRange {
			continue
		}
		comparable = append(comparable, rep)
	}
	sort.Slice(comparable, func(i, j int) bool {
		return abs(comparable[i].Mileage-q.Mileage) < abs(comparable[j].Mileage-q.Mileage)
	})
	if len(comparable) > estimateSamples {
		comparable = comparable[:estimateSamples]
	}
	if len(comparable) == 0 {
		return Estimate{}, nil
	}

	var total int64
	for _, rep := range comparable {
		total += rep.Price
	}
	return Estimate{Price: total / int64(len(comparable)), Samples: len(comparable)}, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
