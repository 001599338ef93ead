package metadata

/** @brief Describes a type of job */
type JobType int

const (
	/**
	 * @brief A general job that does not have any specific thread requirements.
	 */
	JOB_TYPE_GENERAL JobType = 0x02
	/**
	 * @brief A resource loading job, such as decoding an image from disk.
	 */
	JOB_TYPE_RESOURCE_LOAD JobType = 0x04
	/**
	 * @brief A slice of a dispatch: one kernel workgroup or one raster tile.
	 */
	JOB_TYPE_DISPATCH JobType = 0x08
)

/**
 * @brief Describes a job to be run by the job system.
 */
type JobTask struct {
	/** @brief The type of job. Only used for logging. */
	Type JobType
	/** @brief Data passed to OnStart. */
	InputParams interface{}
	/** @brief Invoked when the job starts. Results may be sent on the channel. Required. */
	OnStart func(params interface{}, results chan<- interface{}) error
	/** @brief Invoked when OnStart succeeded. Optional. */
	OnComplete func(results <-chan interface{})
	/** @brief Invoked when OnStart returned an error. Optional. */
	OnFailure func(results <-chan interface{})
	/** @brief Invoked after OnComplete or OnFailure, whatever the outcome. Optional. */
	OnCompletionCallback func()
}

func (t JobType) String() string {
	switch t {
	case JOB_TYPE_RESOURCE_LOAD:
		return "resource_load"
	case JOB_TYPE_DISPATCH:
		return "dispatch"
	}
	return "general"
}
