package process

import "github.com/sherine-k/procflow/pkg/queue"

// Observer receives item lifecycle notifications for reporting
type Observer interface {
	ItemCreated(component string, item *queue.Item)
	ServiceStarted(component string, item *queue.Item)
	ServiceCompleted(component string, item *queue.Item)
	ItemDisposed(component string, item *queue.Item)
}

type noObserver struct{}

func (noObserver) ItemCreated(string, *queue.Item)      {}
func (noObserver) ServiceStarted(string, *queue.Item)   {}
func (noObserver) ServiceCompleted(string, *queue.Item) {}
func (noObserver) ItemDisposed(string, *queue.Item)     {}

func orNoObserver(o Observer) Observer {
	if o == nil {
		return noObserver{}
	}
	return o
}
