package database

// Statements used by the Postgres video store.
const (
	videoColumns = `id, titulo, audio_filename, tiene_audio, duracion_transicion, estado, formato,
		user_login, output_key, output_filename, error_message, fecha_creacion, fecha_descarga`

	InsertVideo = `
		INSERT INTO videos (titulo, audio_filename, tiene_audio, duracion_transicion, estado, formato, user_login)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, fecha_creacion`

	SelectVideoByOwner = `SELECT ` + videoColumns + ` FROM videos WHERE id = $1 AND user_login = $2`

	SelectVideo = `SELECT ` + videoColumns + ` FROM videos WHERE id = $1`

	UpdateVideoFields = `
		UPDATE videos
		SET titulo = $1, audio_filename = $2, tiene_audio = $3, duracion_transicion = $4, formato = $5
		WHERE id = $6 AND user_login = $7`

	MarkVideoCompleted = `
		UPDATE videos
		SET estado = 'COMPLETADO', output_key = $1, output_filename = $2, error_message = NULL
		WHERE id = $3`

	MarkVideoProcessing = `
		UPDATE videos
		SET estado = 'EN_PROCESO', output_key = NULL, output_filename = NULL, error_message = NULL
		WHERE id = $1`

	MarkVideoFailed = `
		UPDATE videos
		SET estado = 'ERROR', error_message = $1
		WHERE id = $2`

	MarkVideoDownloaded = `UPDATE videos SET fecha_descarga = $1 WHERE id = $2`

	SelectCredits = `
		SELECT id, user_login, videos_consumidos, videos_disponibles
		FROM video_creditos
		WHERE user_login = $1`

	ReserveCredit = `
		UPDATE video_creditos
		SET videos_consumidos = videos_consumidos + 1
		WHERE user_login = $1 AND videos_consumidos < videos_disponibles`

	ReleaseCredit = `
		UPDATE video_creditos
		SET videos_consumidos = videos_consumidos - 1
		WHERE user_login = $1 AND videos_consumidos > 0`
)
