// Package mediakit is a client library for a media processing backend. It
// uploads source files over whichever protocol the backend advertises, either
// resumable tus streams or presigned S3 multipart uploads with bounded part
// concurrency, and submits and tracks asynchronous media jobs (stem split,
// mux merge, transcription, bulk rename) until they reach a terminal state.
//
// Basic usage:
//
//	client, err := mediakit.New("https://api.example.com",
//		mediakit.WithConcurrency(8),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := client.UploadFile(ctx, "/media/take1.wav")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	jobID, err := client.SubmitSplit(ctx, mediatypes.SplitRequest{SourceURL: result.Location})
//	if err != nil {
//		log.Fatal(err)
//	}
//	updates, err := client.TrackJob(ctx, jobID)
//	if err != nil {
//		log.Fatal(err)
//	}
//	for snap := range updates {
//		log.Printf("%s: %s", snap.ID, snap.State)
//	}
package mediakit
