package server

// sweep runs one liveness cycle. Clients that have not answered the previous
// ping are closed and disconnected; the rest are marked not alive and pinged
// again. The pong handler flips the flag back before the next cycle.
func (h *Hub) sweep() {
	clients := h.clientSnapshot()
	reaped := 0

	for _, c := range clients {
		if c.probe() {
			c.ping()
			continue
		}

		c.logger.Info("reaping unresponsive connection", "user_id", c.UserID())
		c.closeConnection()
		h.disconnect(c)
		h.metrics.ConnectionReaped()
		reaped++
	}

	if reaped > 0 {
		h.logger.Info("liveness sweep complete", "checked", len(clients), "reaped", reaped)
	}
}
