package uci

// queuedCommand is one line waiting to be written. req is set on the line
// that starts a request's work (the search or sync command); its
// response is the next terminal message.
type queuedCommand struct {
	line string
	req  *request
}

// CommandQueue is a FIFO of not yet written commands. It is not safe for
// concurrent use; Session guards it with its mutex.
type CommandQueue struct {
	items []queuedCommand
}

func (q *CommandQueue) push(line string, req *request) {
	q.items = append(q.items, queuedCommand{line: line, req: req})
}

// next removes and returns the oldest command.
func (q *CommandQueue) next() (queuedCommand, bool) {
	if len(q.items) == 0 {
		return queuedCommand{}, false
	}
	cmd := q.items[0]
	q.items[0] = queuedCommand{}
	q.items = q.items[1:]
	return cmd, true
}

// discard empties the queue and returns the requests that were waiting.
func (q *CommandQueue) discard() []*request {
	var reqs []*request
	for _, cmd := range q.items {
		if cmd.req != nil {
			reqs = append(reqs, cmd.req)
		}
	}
	q.items = nil
	return reqs
}

// Len is the number of queued lines.
func (q *CommandQueue) Len() int { return len(q.items) }

// Requests is the number of queued requests.
func (q *CommandQueue) Requests() int {
	n := 0
	for _, cmd := range q.items {
		if cmd.req != nil {
			n++
		}
	}
	return n
}
