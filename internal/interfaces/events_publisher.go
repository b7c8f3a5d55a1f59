package interfaces

// EventPublisher fans domain events out to interested downstream systems
// (dashboards, audit sinks). Publishing is always best-effort; callers never
// fail a business operation over a publish error.
type EventPublisher interface {
	Publish(topic string, event any) error
}
