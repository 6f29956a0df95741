package models

// Viewing is a ViewingRequest loaded together with its Transaction.
// The two are always read and written as one unit.
type Viewing struct {
	Request     ViewingRequest `json:"request"`
	Transaction Transaction    `json:"transaction"`
}

// Clone returns a deep copy so a transition can be computed without touching the original.
func (v *Viewing) Clone() *Viewing {
	c := *v
	c.Request.PreferredDates = append(DateList(nil), v.Request.PreferredDates...)
	c.Request.ScheduledDate = cloneTime(v.Request.ScheduledDate)
	c.Request.TenantConfirmedAt = cloneTime(v.Request.TenantConfirmedAt)
	c.Request.LandlordConfirmedAt = cloneTime(v.Request.LandlordConfirmedAt)
	c.Request.DisputeDeadline = cloneTime(v.Request.DisputeDeadline)
	if v.Request.CancelledBy != nil {
		p := *v.Request.CancelledBy
		c.Request.CancelledBy = &p
	}
	c.Transaction.ResolvedAt = cloneTime(v.Transaction.ResolvedAt)
	return &c
}
