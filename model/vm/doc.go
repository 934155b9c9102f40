// Package vm defines the pager's virtual memory vocabulary: checked address
// and page arithmetic, region flags, mapped regions and backing objects with
// their resident page caches.
package vm
