package optimizer

import (
	"strings"
	"sync"

	"github.com/golang/glog"
	"github.com/samber/lo"

	"github.com/pattyshack/assembly/object"
)

// A layout pass over the whole object.
type Pass interface {
	Name() string
	Process(*object.Object)
}

// runPasses runs the pass groups in order.  Passes within a group touch
// disjoint state and run concurrently.  Processing stops after the first
// group for which stop (optional) reports true.
func runPasses(obj *object.Object, groups [][]Pass, stop func() bool) {
	for _, group := range groups {
		if len(group) == 1 {
			group[0].Process(obj)
		} else {
			wg := sync.WaitGroup{}
			wg.Add(len(group))
			for _, pass := range group {
				go func(pass Pass) {
					defer wg.Done()
					pass.Process(obj)
				}(pass)
			}
			wg.Wait()
		}

		if glog.V(2) {
			names := lo.Map(group, func(pass Pass, _ int) string {
				return pass.Name()
			})
			glog.Infof("object %s: ran %s", obj.Name, strings.Join(names, ", "))
		}

		if stop != nil && stop() {
			return
		}
	}
}

// forEachSection calls process on every section concurrently, and waits
// for all calls to return.
func forEachSection(
	sections []*object.Section,
	process func(*object.Section),
) {
	wg := sync.WaitGroup{}
	wg.Add(len(sections))
	for _, section := range sections {
		go func(section *object.Section) {
			defer wg.Done()
			process(section)
		}(section)
	}
	wg.Wait()
}
