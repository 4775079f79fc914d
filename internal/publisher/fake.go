package publisher

// FakePublisher records every published Message so tests can inspect them.
// PublishError fails every publish; Closed records Close.
type FakePublisher struct {
	Messages     []Message
	PublishError error
	Closed       bool
}

// Publish appends the message to the recorded list, or returns PublishError
// if set.
func (f *FakePublisher) Publish(msg Message) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Messages = append(f.Messages, msg)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// Find returns the last Message published to topic, plus a found bool.
func (f *FakePublisher) Find(topic string) (Message, bool) {
	for i := len(f.Messages) - 1; i >= 0; i-- {
		if f.Messages[i].Topic == topic {
			return f.Messages[i], true
		}
	}
	return Message{}, false
}

// Topics lists every topic published to, in order, with repeats.
func (f *FakePublisher) Topics() []string {
	topics := make([]string, len(f.Messages))
	for i, m := range f.Messages {
		topics[i] = m.Topic
	}
	return topics
}

// Reset clears all recorded state so the fake can be reused between sub-tests.
func (f *FakePublisher) Reset() {
	f.Messages = nil
	f.PublishError = nil
	f.Closed = false
}
