package quote

// Publisher 一个轻量会话快照分发器。
type Publisher struct {
	subs []chan Session
}

func NewPublisher() *Publisher {
	return &Publisher{
		subs: make([]chan Session, 0),
	}
}

func (p *Publisher) Subscribe() <-chan Session {
	ch := make(chan Session, 1)
	p.subs = append(p.subs, ch)
	return ch
}

func (p *Publisher) Publish(s Session) {
	for _, ch := range p.subs {
		select {
		case ch <- s:
		default:
		}
	}
}
