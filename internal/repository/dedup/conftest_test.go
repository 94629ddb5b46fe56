package dedup

import "context"

// storeMock implements store with overridable behavior per test.
type storeMock struct {
	saddFunc      func(ctx context.Context, key string, members ...string) (int64, error)
	sisMemberFunc func(ctx context.Context, key, member string) (bool, error)
	delFunc       func(ctx context.Context, key string) error

	saddCalls []saddCall
	delCalls  []string
}

type saddCall struct {
	key     string
	members []string
}

func (m *storeMock) SAdd(ctx context.Context, key string, members ...string) (int64, error) {
	m.saddCalls = append(m.saddCalls, saddCall{key: key, members: members})
	if m.saddFunc != nil {
		return m.saddFunc(ctx, key, members...)
	}
	return int64(len(members)), nil
}

func (m *storeMock) SIsMember(ctx context.Context, key, member string) (bool, error) {
	if m.sisMemberFunc != nil {
		return m.sisMemberFunc(ctx, key, member)
	}
	return false, nil
}

func (m *storeMock) Del(ctx context.Context, key string) error {
	m.delCalls = append(m.delCalls, key)
	if m.delFunc != nil {
		return m.delFunc(ctx, key)
	}
	return nil
}
