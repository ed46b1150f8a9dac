// Package quip classifies short statements into one of four figurative
// language labels: Figurative, Irony, Regular or Sarcasm.
//
// Quick start:
//
//	q, err := quip.New(quip.WithArtifactDir("models/"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer q.Close()
//
//	label, _ := q.Predict("wow, just wow")
//	fmt.Println(label) // Sarcasm
//
// A Quip instance is immutable after New and safe for concurrent use.
// Batches go through the vectorizer and classifier in a single call each;
// PredictBatch(texts)[i] always equals Predict(texts[i]).
package quip
