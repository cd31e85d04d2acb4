package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a quiz session id is unknown or was abandoned.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrQuizNotFound indicates the quiz set could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates a flattened index outside the session.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrNoPlayableContent is returned when a quiz set flattens to nothing.
	ErrNoPlayableContent = errors.New("no playable content")
	// ErrNoSnippets is returned when generation is requested without source text.
	ErrNoSnippets = errors.New("no source snippets provided")
	// ErrAlreadySubmitted is returned when an answer arrives after submission.
	ErrAlreadySubmitted = errors.New("session already submitted")
	// ErrSessionClosed is returned for an empty or abandoned session.
	ErrSessionClosed = errors.New("session is not in progress")
)
