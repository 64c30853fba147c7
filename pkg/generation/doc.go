// Package generation turns a video's subtitles, or a plain-text post, into
// Japanese social media copy.
//
// A request goes through the Service admission flow:
//
//  1. validate the request (first violated field wins)
//  2. check the caller's monthly quota through usage.Tracker
//  3. call the language model once through a Generator
//  4. decode the JSON reply against a fixed schema
//  5. save the Record and increment usage, both best effort
//
// Validation and quota errors are returned before any model call is made.
// Model failures are classified into an *UpstreamError.
package generation
