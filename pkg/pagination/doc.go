// Package pagination provides pull-based iteration over offset-paginated
// endpoints, plus small combinators (Map, Batch) over any Source.
//
// The search proxy reports the total match count on every page. The
// iterator fetches the first page to learn that total, then requests
// further pages offset by the number of records already yielded until the
// total has been produced:
//
//	it := pagination.NewIterator[solr.Record](fetcher, 10)
//	for {
//		rec, err := it.Next(ctx)
//		if err == iterator.Done {
//			break
//		}
//		if err != nil {
//			return err
//		}
//		use(rec)
//	}
//
// End of sequence is signalled with iterator.Done from
// google.golang.org/api/iterator. Iterators are lazy, finite and not
// restartable: once Done (or an error) has been returned, every later call
// returns the same value without touching the network.
//
// Only one page request is in flight at a time; a page is requested when
// the previous page's records have all been consumed.
//
// Known limitation: the total observed on the first page is trusted for
// the whole run. If the corpus changes between page requests, the
// iterator may yield fewer records than a live count (a page comes back
// empty early, iteration ends) or stop before new matches are seen (it
// never yields more than the first total).
package pagination
