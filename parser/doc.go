// Package parser implements the streaming directive parser.
//
// A model reply is free-form prose that may embed artifacts:
//
//	<boltArtifact id="todo-app" title="Todo App">
//	  <boltAction type="file" filePath="src/app.js">console.log("hi")</boltAction>
//	  <boltAction type="shell">npm install</boltAction>
//	</boltArtifact>
//
// StreamingParser is fed the full text accumulated so far for a stream (not a
// delta) every time the stream grows. It keeps one cursor per stream id,
// resumes from the last safe position, and fires callbacks exactly once per
// element: artifact open, action open, action close, artifact close, in
// document order. A call may end anywhere, including in the middle of a tag;
// the partial tag is buffered until a later call completes it. Parse returns
// the display text of the whole stream so far with all directive markup
// removed (or replaced by an optional placeholder element).
//
// Reset and ResetStream discard cursors so a reused stream id starts over with
// a fresh grammar state.
package parser
