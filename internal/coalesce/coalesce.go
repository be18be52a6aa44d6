package coalesce

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Group deduplicates concurrent work per key.
// 같은 key 로 실행 중인 작업이 있으면 새 호출자는 그 작업의 완료를 기다리고
// fn 을 다시 실행하지 않는다. 결과 값이 필요하면 깨어난 뒤 store 를 다시 읽는다.
type Group struct {
	sf       singleflight.Group
	inFlight atomic.Int64
}

// Do runs fn for key unless an execution is already in flight, in which case
// it waits for that execution and returns its error. shared 는 다른 호출자와
// 실행을 공유했는지 여부.
//
// fn 은 소유자(첫 호출자)의 ctx 로 실행된다. 소유자가 취소되면 대기자도 같은
// 실패를 받는다. 대기자 자신의 ctx 가 먼저 끝나면 ctx.Err() 를 돌려준다.
func (g *Group) Do(ctx context.Context, key string, fn func(ctx context.Context) error) (shared bool, err error) {
	ch := g.sf.DoChan(key, func() (interface{}, error) {
		g.inFlight.Add(1)
		defer g.inFlight.Add(-1)
		return nil, fn(ctx)
	})

	select {
	case res := <-ch:
		return res.Shared, res.Err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// InFlight returns the number of executions currently running
func (g *Group) InFlight() int64 {
	return g.inFlight.Load()
}
