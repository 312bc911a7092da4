// Package classifier answers one question about a camera frame: is there a cat in it?
//
// The engine depends only on the Classifier interface. Fake returns random
// verdicts for demos; HTTP delegates to a remote labelling service.
// Decode and DecodeFile accept png, jpeg, gif, bmp, tiff and webp input.
package classifier
