package domain

import "time"

// Message es un registro persistido del log de conversaciones. Inmutable una vez guardado.
type Message struct {
	ID      int64     `json:"id"`
	Date    time.Time `json:"date"`
	User    string    `json:"user"`
	Content string    `json:"content"`
}
