package model

// ProjectRef is the lightweight project summary attached to schedule
// entries. Project ids are opaque to the engine; the title is filled in
// by callers that know it and stays empty otherwise.
type ProjectRef struct {
	ID    string
	Title string
}
