package scan

import "sort"

// sortChildren sorts a children list ascending. Large lists are split and
// sorted concurrently, then merged in place.
func sortChildren(names []string) {
	if len(names) <= parallelSortThreshold {
		sort.Strings(names)
		return
	}

	mid := len(names) / 2
	left := names[:mid]
	right := append([]string(nil), names[mid:]...)

	done := make(chan struct{})
	go func() {
		sort.Strings(right)
		close(done)
	}()
	sort.Strings(left)
	<-done

	merge(names, left, right)
}

// merge combines two sorted halves into dst. left aliases the front of dst,
// so the merge walks backwards from the end.
func merge(dst, left, right []string) {
	i, j, k := len(left)-1, len(right)-1, len(dst)-1
	for j >= 0 {
		if i >= 0 && left[i] > right[j] {
			dst[k] = left[i]
			i--
		} else {
			dst[k] = right[j]
			j--
		}
		k--
	}
}
