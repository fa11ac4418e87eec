package worker

import "sync"

// Token 某个视图的一次取数代次。
type Token struct {
	View string
	Gen  uint64
}

// Generations 按视图发放递增代次；新请求发出后，同一视图的旧代次即过期。
type Generations struct {
	mu      sync.Mutex
	current map[string]uint64
}

func NewGenerations() *Generations {
	return &Generations{current: make(map[string]uint64)}
}

// Next 为视图发放新代次，之前发出的代次全部作废。
func (g *Generations) Next(view string) Token {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.current[view]++
	return Token{View: view, Gen: g.current[view]}
}

// Current 代次是否仍是该视图最新的。View 为空的代次不参与比较，始终有效。
func (g *Generations) Current(t Token) bool {
	if t.View == "" {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current[t.View] == t.Gen
}
