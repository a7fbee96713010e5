package metrics

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordProviderCall(string, string) {}
func (Nop) RecordRateLimited(string)          {}
func (Nop) RecordCooldown(string, string)     {}
func (Nop) RecordFallback(string)             {}
func (Nop) RecordCacheLookup(bool)            {}
func (Nop) RecordSourceError(string)          {}
func (Nop) RecordFused(string)                {}
func (Nop) RecordError(string)                {}
func (Nop) RecordLatency(string, float64)     {}
func (Nop) RecordLastPrice(string, float64)   {}
