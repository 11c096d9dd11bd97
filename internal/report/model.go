package report

import "time"

// Report is a user-submitted record of a car sale, used as pricing
// evidence once approved.
type Report struct {
	ID        string
	UserID    string
	Price     int64
	Make      string
	Model     string
	Year      int
	Lng       float64
	Lat       float64
	Mileage   int
	Approved  bool
	CreatedAt time.Time
}

// EstimateQuery describes the car whose value is being estimated.
type EstimateQuery struct {
	Make    string
	Model   string
	Year    int
	Lng     float64
	Lat     float64
	Mileage int
}

// Estimate is the average price over the closest approved comparables.
type Estimate struct {
	Price   int64
	Samples int
}
