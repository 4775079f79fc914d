package credential

// FakeStore is an in-memory Store for tests. GetErr and SetErr, when set,
// are returned instead of touching Entries.
type FakeStore struct {
	Entries  map[string]string // keyed by service + "/" + user
	GetErr   error
	SetErr   error
	SetCount int
}

func fakeKey(service, user string) string { return service + "/" + user }

// Get returns the seeded entry or ErrNotFound.
func (f *FakeStore) Get(service, user string) (string, error) {
	if f.GetErr != nil {
		return "", f.GetErr
	}
	secret, ok := f.Entries[fakeKey(service, user)]
	if !ok {
		return "", ErrNotFound
	}
	return secret, nil
}

// Set records the entry.
func (f *FakeStore) Set(service, user, secret string) error {
	if f.SetErr != nil {
		return f.SetErr
	}
	if f.Entries == nil {
		f.Entries = make(map[string]string)
	}
	f.Entries[fakeKey(service, user)] = secret
	f.SetCount++
	return nil
}

// FakePrompter returns Secret (or Err) and counts calls.
type FakePrompter struct {
	Secret    string
	Err       error
	CallCount int
}

// Prompt returns the scripted answer.
func (f *FakePrompter) Prompt() (string, error) {
	f.CallCount++
	if f.Err != nil {
		return "", f.Err
	}
	return f.Secret, nil
}
