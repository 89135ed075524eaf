// Package framesupplier hands camera frames to pose extraction workers
// just in time.
//
// Frames are never queued. The supplier keeps one inbox slot and one slot per
// worker; a newer frame replaces an unconsumed one and the replacement is
// counted as a drop. A pose extractor is slower than the camera, so it always
// works on the freshest frame instead of falling behind.
//
// Lifecycle:
//
//	s := framesupplier.New()
//	s.Start(ctx)
//	read := s.Subscribe("pose")
//	defer s.Unsubscribe("pose")
//	for {
//		frame := read()
//		if frame == nil {
//			return // unsubscribed or supplier stopped
//		}
//		extract(frame)
//	}
//
// Publishers must not modify Frame.Data after Publish; every worker shares the
// same backing array.
package framesupplier
